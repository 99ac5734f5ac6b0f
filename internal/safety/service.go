// Package safety raises SOS alerts and keeps each user's last known location.
package safety

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"scbackend/internal/db"
	"scbackend/internal/domain"
	"scbackend/internal/ident"
	"scbackend/internal/mqtt"
)

var ErrInvalidRequest = errors.New("invalid safety request")

type SMSSender interface {
	Send(ctx context.Context, phone, message string) (string, error)
}

type Broadcaster interface {
	BroadcastSOS(ctx context.Context, alert mqtt.SOSAlert) (int, error)
}

type Geocoder interface {
	Reverse(ctx context.Context, lat, lng float64) (string, error)
}

type Store interface {
	InsertSOSLog(ctx context.Context, l db.SOSLog) error
	UpsertLocation(ctx context.Context, loc domain.LocationUpdate) (domain.LocationUpdate, error)
	GetLocation(ctx context.Context, userID string) (domain.LocationUpdate, error)
}

type Config struct {
	EmergencyNumber string
	Timeout         time.Duration
}

type Service struct {
	cfg         Config
	store       Store
	sms         SMSSender
	broadcaster Broadcaster
	geocoder    Geocoder
	logger      *slog.Logger
}

// NewService wires the SOS pipeline. sms, broadcaster and geocoder may be nil.
func NewService(cfg Config, store Store, sms SMSSender, broadcaster Broadcaster, geocoder Geocoder, logger *slog.Logger) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Service{
		cfg:         cfg,
		store:       store,
		sms:         sms,
		broadcaster: broadcaster,
		geocoder:    geocoder,
		logger:      logger,
	}
}

func (s *Service) TelephonyConfigured() bool {
	return s.sms != nil && s.cfg.EmergencyNumber != ""
}

// TriggerSOS only fails on invalid input. Delivery problems are reported in
// the result so the caller can still answer the user.
func (s *Service) TriggerSOS(ctx context.Context, req domain.SOSRequest) (domain.SOSResult, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return domain.SOSResult{}, fmt.Errorf("%w: user_id is required", ErrInvalidRequest)
	}

	address := s.resolveAddress(ctx, req)
	text := AlertMessage(address, req.Message)
	out := domain.SOSResult{Success: true, Address: address}

	switch {
	case !s.TelephonyConfigured():
		out.Message = "SOS alert received (call not configured)"
		out.CallStatus = "Telephony not configured"
	default:
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		sid, err := s.sms.Send(callCtx, s.cfg.EmergencyNumber, text)
		cancel()
		if err != nil {
			s.logger.Error("sos delivery failed", "user_id", req.UserID, "error", err)
			out.Message = "SOS alert received"
			out.CallStatus = "Call failed: " + err.Error()
		} else {
			out.Message = "SOS alert sent successfully"
			out.CallStatus = "Emergency call initiated"
			out.CallSID = sid
			out.CallSuccessful = true
		}
	}

	if s.broadcaster != nil {
		bctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		n, err := s.broadcaster.BroadcastSOS(bctx, mqtt.SOSAlert{
			AlertID:   ident.New(),
			UserID:    req.UserID,
			Location:  address,
			Message:   text,
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
		})
		cancel()
		if err != nil {
			s.logger.Warn("sos broadcast failed", "user_id", req.UserID, "error", err)
		}
		out.CaregiversNotified = err == nil && n > 0
	}

	if err := s.store.InsertSOSLog(ctx, db.SOSLog{
		UserID:     req.UserID,
		Location:   address,
		Message:    text,
		CallStatus: out.CallStatus,
		CallSID:    out.CallSID,
	}); err != nil {
		s.logger.Warn("sos log write failed", "user_id", req.UserID, "error", err)
	}

	s.logger.Info("sos handled", "user_id", req.UserID, "call_successful", out.CallSuccessful, "caregivers_notified", out.CaregiversNotified)
	return out, nil
}

// resolveAddress prefers the explicit location, then coordinates, then the
// last stored location.
func (s *Service) resolveAddress(ctx context.Context, req domain.SOSRequest) string {
	if loc := strings.TrimSpace(req.Location); loc != "" {
		return loc
	}
	if req.Latitude != nil && req.Longitude != nil {
		if addr := s.reverse(ctx, *req.Latitude, *req.Longitude); addr != "" {
			return addr
		}
	}
	if last, err := s.store.GetLocation(ctx, req.UserID); err == nil && last.Address != "" {
		return last.Address
	}
	return "Current location"
}

func (s *Service) reverse(ctx context.Context, lat, lng float64) string {
	if s.geocoder == nil {
		return ""
	}
	addr, err := s.geocoder.Reverse(ctx, lat, lng)
	if err != nil {
		s.logger.Warn("reverse geocode failed", "error", err)
		return ""
	}
	return addr
}

// AlertMessage is the text delivered to the emergency contact.
func AlertMessage(address, note string) string {
	msg := fmt.Sprintf("Emergency SOS Alert. Address: %s.", address)
	if note = strings.TrimSpace(note); note != "" {
		msg += " Message: " + note
	}
	return msg
}

// RecordLocation stores a location, reverse geocoding coordinates when no
// address was given.
func (s *Service) RecordLocation(ctx context.Context, loc domain.LocationUpdate) (domain.LocationUpdate, error) {
	if strings.TrimSpace(loc.UserID) == "" {
		return domain.LocationUpdate{}, fmt.Errorf("%w: user_id is required", ErrInvalidRequest)
	}
	hasCoords := loc.Latitude != nil && loc.Longitude != nil
	loc.Address = strings.TrimSpace(loc.Address)
	if loc.Address == "" && !hasCoords {
		return domain.LocationUpdate{}, fmt.Errorf("%w: address or latitude/longitude is required", ErrInvalidRequest)
	}
	if loc.Address == "" {
		loc.Address = s.reverse(ctx, *loc.Latitude, *loc.Longitude)
	}
	if loc.Source == "" {
		loc.Source = "api"
	}
	return s.store.UpsertLocation(ctx, loc)
}

func (s *Service) GetLocation(ctx context.Context, userID string) (domain.LocationUpdate, error) {
	return s.store.GetLocation(ctx, userID)
}
