// Package catalog reads events and writes registrations through the events API.
// Every call is a fresh read; nothing is cached.
package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"scbackend/internal/coreapi"
	"scbackend/internal/domain"
)

// Error codes shared with the events API.
const (
	CodeAlreadyRegistered = "ALREADY_REGISTERED"
	CodeNotRegistered     = "NOT_REGISTERED"
	CodeEventNotFound     = "EVENT_NOT_FOUND"
)

var (
	ErrAlreadyRegistered = errors.New("already registered")
	ErrNotRegistered     = errors.New("not registered")
	ErrNotFound          = errors.New("event not found")
)

type TransportError = coreapi.TransportError

type Client struct {
	api *coreapi.Client
}

func NewClient(api *coreapi.Client) *Client {
	return &Client{api: api}
}

func (c *Client) List(ctx context.Context, limit int) ([]domain.Event, error) {
	var out struct {
		Events []domain.Event `json:"events"`
	}
	path := "events/list?limit=" + strconv.Itoa(limit)
	if err := c.api.Do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, classify(err)
	}
	return out.Events, nil
}

func (c *Client) Get(ctx context.Context, id string) (domain.Event, error) {
	var out struct {
		Event *domain.Event `json:"event"`
	}
	if err := c.api.Do(ctx, http.MethodGet, "events/"+url.PathEscape(id), nil, &out); err != nil {
		return domain.Event{}, classify(err)
	}
	if out.Event == nil {
		return domain.Event{}, ErrNotFound
	}
	return *out.Event, nil
}

func (c *Client) Register(ctx context.Context, eventID, userID string) error {
	body := map[string]string{"event_id": eventID, "user_id": userID}
	return classify(c.api.Do(ctx, http.MethodPost, "events/register", body, nil))
}

func (c *Client) Unregister(ctx context.Context, eventID, userID string) error {
	path := "events/register/" + url.PathEscape(eventID) + "/" + url.PathEscape(userID)
	return classify(c.api.Do(ctx, http.MethodDelete, path, nil, nil))
}

// classify maps API errors onto the package sentinels. The code field is
// authoritative; detail wording is only consulted when no code was sent.
func classify(err error) error {
	var apiErr *coreapi.APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	var sentinel error
	switch apiErr.Code {
	case CodeAlreadyRegistered:
		sentinel = ErrAlreadyRegistered
	case CodeNotRegistered:
		sentinel = ErrNotRegistered
	case CodeEventNotFound:
		sentinel = ErrNotFound
	case "":
		detail := strings.ToLower(apiErr.Detail)
		switch {
		case strings.Contains(detail, "already registered"):
			sentinel = ErrAlreadyRegistered
		case strings.Contains(detail, "not registered"):
			sentinel = ErrNotRegistered
		case strings.Contains(detail, "not found"):
			sentinel = ErrNotFound
		}
	}
	if sentinel == nil {
		return err
	}
	return &codedError{sentinel: sentinel, err: apiErr}
}

type codedError struct {
	sentinel error
	err      *coreapi.APIError
}

func (e *codedError) Error() string { return e.err.Error() }

func (e *codedError) Unwrap() []error { return []error{e.sentinel, e.err} }
