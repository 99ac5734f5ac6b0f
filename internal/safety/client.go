package safety

import (
	"context"
	"net/http"

	"scbackend/internal/coreapi"
	"scbackend/internal/domain"
)

// Client calls the safety endpoints over HTTP on behalf of the orchestrator.
type Client struct {
	api *coreapi.Client
}

func NewClient(api *coreapi.Client) *Client {
	return &Client{api: api}
}

func (c *Client) TriggerSOS(ctx context.Context, userID, location, message string) (domain.SOSResult, error) {
	var out domain.SOSResult
	body := map[string]string{"user_id": userID, "location": location, "message": message}
	if err := c.api.Do(ctx, http.MethodPost, "safety/sos", body, &out); err != nil {
		return domain.SOSResult{}, err
	}
	return out, nil
}

func (c *Client) UpdateLocation(ctx context.Context, userID, address string) error {
	body := map[string]string{"user_id": userID, "address": address}
	return c.api.Do(ctx, http.MethodPost, "safety/location", body, nil)
}
