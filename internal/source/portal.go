package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://connexion.leaudiledefrance.fr"
	loginPath      = "/s/login"
	historyPath    = "/espace-particuliers/s/historique"
)

// PortalConfig configures the portal client. Credentials are required;
// everything else has working defaults.
type PortalConfig struct {
	BaseURL  string
	Username string
	Password string
	Debug    bool
}

// Portal fetches consumption data from the utility's customer portal:
// one session login, then the JSON endpoints behind the history page.
type Portal struct {
	cfg    PortalConfig
	client *http.Client
}

var _ Source = (*Portal)(nil)

// NewPortal builds a portal client with its own cookie session.
func NewPortal(cfg PortalConfig) (*Portal, error) {
	if cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("portal: username and password are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("portal: cookie jar: %w", err)
	}
	return &Portal{
		cfg: cfg,
		client: &http.Client{
			Jar:     jar,
			Timeout: 30 * time.Second,
		},
	}, nil
}

// Fetch logs in and captures the JSON payloads behind the history page.
// Callers bound the whole fetch through ctx.
func (p *Portal) Fetch(ctx context.Context) (Result, error) {
	if err := p.login(ctx); err != nil {
		return Result{}, err
	}

	payload, err := p.getJSON(ctx, historyPath)
	if err != nil {
		return Result{}, err
	}

	res, err := BuildResult([]any{payload})
	if err != nil {
		return Result{}, err
	}
	if p.cfg.Debug {
		log.Printf("portal: extracted %d day-records (%s..%s)",
			len(res.Readings),
			res.Readings[0].Date, res.Readings[len(res.Readings)-1].Date)
	}
	return res, nil
}

func (p *Portal) login(ctx context.Context) error {
	form := url.Values{}
	form.Set("username", p.cfg.Username)
	form.Set("password", p.cfg.Password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.BaseURL+loginPath, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("portal: build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: login: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: login rejected (%d)", ErrAuthFailed, resp.StatusCode)
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: login endpoint returned %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

func (p *Portal) getJSON(ctx context.Context, path string) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("portal: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		// Session expired between login and fetch.
		return nil, fmt.Errorf("%w: %s returned %d", ErrAuthFailed, path, resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%w: %s returned %d", ErrUnavailable, path, resp.StatusCode)
	}

	var payload any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrUnavailable, path, err)
	}
	return payload, nil
}
