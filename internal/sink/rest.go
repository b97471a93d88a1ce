package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// RESTConfig configures the Home Assistant REST sink. Inside an add-on
// container, URL is the supervisor proxy and Token the supervisor token.
type RESTConfig struct {
	URL   string // e.g. "http://supervisor/core"
	Token string
}

// REST posts entity states straight to the hub's /api/states endpoint,
// the way the original add-on did before discovery. POST to that endpoint
// creates-or-updates, so both declaration and publication are naturally
// idempotent; metadata travels as attributes.
type REST struct {
	cfg    RESTConfig
	client *http.Client

	device   Device
	entities map[string]Entity
}

var _ Sink = (*REST)(nil)

func NewREST(cfg RESTConfig) (*REST, error) {
	if cfg.URL == "" || cfg.Token == "" {
		return nil, fmt.Errorf("rest: URL and token are required")
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	return &REST{
		cfg:      cfg,
		client:   &http.Client{Timeout: 30 * time.Second},
		entities: map[string]Entity{},
	}, nil
}

// Declare records entity metadata for the subsequent Publish calls; the
// REST API has no separate registration step.
func (r *REST) Declare(ctx context.Context, device Device, entities []Entity) error {
	_ = ctx
	r.device = device
	for _, e := range entities {
		r.entities[e.EntityID] = e
	}
	return nil
}

type restState struct {
	State      any            `json:"state"`
	Attributes map[string]any `json:"attributes"`
}

func (r *REST) Publish(ctx context.Context, entityID string, v Value) error {
	e, ok := r.entities[entityID]
	if !ok {
		return fmt.Errorf("rest: entity %q was never declared", entityID)
	}

	attrs := map[string]any{
		"friendly_name": e.Name,
		"device": map[string]any{
			"identifiers":  r.device.Identifiers,
			"name":         r.device.Name,
			"manufacturer": r.device.Manufacturer,
			"model":        r.device.Model,
		},
	}
	if e.Unit != "" {
		attrs["unit_of_measurement"] = e.Unit
	}
	for k, val := range v.Attributes {
		attrs[k] = val
	}

	state := restState{State: v.State, Attributes: attrs}
	if !v.Available {
		state.State = "unavailable"
	}

	body, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("rest: marshal state for %s: %w", entityID, err)
	}

	url := fmt.Sprintf("%s/api/states/sensor.%s", r.cfg.URL, entityID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("rest: build request for %s: %w", entityID, err)
	}
	req.Header.Set("Authorization", "Bearer "+r.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: post %s: %v", ErrUnavailable, entityID, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: post %s returned %d", ErrUnavailable, entityID, resp.StatusCode)
	}
	return nil
}

func (r *REST) Close() {}
