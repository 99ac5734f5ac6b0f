// Package history keeps a per-user log of orchestrated interactions.
package history

import (
	"context"
	"errors"
	"strings"

	"scbackend/internal/domain"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
	maxTextLen   = 2000
)

var ErrUserRequired = errors.New("user_id is required")

type Store interface {
	InsertInteraction(ctx context.Context, in domain.Interaction) error
	ListInteractions(ctx context.Context, userID string, limit int) ([]domain.Interaction, error)
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Record persists one interaction. Long texts are truncated.
func (s *Service) Record(ctx context.Context, in domain.Interaction) error {
	if strings.TrimSpace(in.UserID) == "" {
		return ErrUserRequired
	}
	if in.Source == "" {
		in.Source = "text"
	}
	in.Message = truncate(in.Message, maxTextLen)
	in.Reply = truncate(in.Reply, maxTextLen)
	return s.store.InsertInteraction(ctx, in)
}

// Recent returns the newest interactions first.
func (s *Service) Recent(ctx context.Context, userID string, limit int) ([]domain.Interaction, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUserRequired
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	items, err := s.store.ListInteractions(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Interaction{}
	}
	return items, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
