package orchestrator

import (
	"fmt"
	"strings"

	"scbackend/internal/domain"
)

// describe renders "Title on DATE at TIME", leaving out what is unknown.
func describe(ev domain.Event) string {
	out := ev.Title
	if ev.Date != "" {
		out += " on " + ev.Date
	}
	if ev.Time != "" {
		out += " at " + ev.Time
	}
	return out
}

func writeBullets(b *strings.Builder, events []domain.Event) {
	for _, ev := range events {
		b.WriteString("• ")
		b.WriteString(describe(ev))
		if ev.Location != nil && *ev.Location != "" {
			b.WriteString(" (")
			b.WriteString(*ev.Location)
			b.WriteString(")")
		}
		b.WriteString("\n")
	}
}

func summary(ev domain.Event) string {
	var b strings.Builder
	b.WriteString(ev.Title)
	if ev.Date != "" {
		fmt.Fprintf(&b, "\nDate: %s", ev.Date)
	}
	if ev.Time != "" {
		fmt.Fprintf(&b, "\nTime: %s", ev.Time)
	}
	if ev.Location != nil && *ev.Location != "" {
		fmt.Fprintf(&b, "\nLocation: %s", *ev.Location)
	}
	if ev.Description != nil && *ev.Description != "" {
		fmt.Fprintf(&b, "\nAbout: %s", *ev.Description)
	}
	if ev.MaxParticipants != nil {
		fmt.Fprintf(&b, "\nCapacity: %d participants", *ev.MaxParticipants)
	}
	return b.String()
}
