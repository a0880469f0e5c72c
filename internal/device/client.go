// Package device is the HTTP client for the espresso machine's REST API.
// The machine is the system of record for profiles; this package never
// caches or persists anything.
package device

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/brewd/internal/profile"
)

// ErrNotFound is returned when the machine reports 404 for a profile id.
var ErrNotFound = errors.New("profile not found on the machine")

// StatusError carries a non-2xx device response with the machine's own
// message, so callers can surface it verbatim.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("machine returned status %d", e.Code)
	}
	return fmt.Sprintf("machine returned status %d: %s", e.Code, e.Message)
}

// Actions the machine accepts on /api/v1/action/{name}.
var Actions = []string{"start", "stop", "tare", "reset"}

// Client communicates with the machine's REST API over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client targeting the machine at the given base URL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 0,
		},
	}
}

// BaseURL returns the machine address the client was built with.
func (c *Client) BaseURL() string { return c.baseURL }

// saveResponse mirrors the JSON returned by POST /api/v1/profile/save.
type saveResponse struct {
	ChangeID string           `json:"change_id,omitempty"`
	Profile  *profile.Profile `json:"profile,omitempty"`
}

// ListProfiles returns id/name summaries of every profile stored on the
// machine.
func (c *Client) ListProfiles(ctx context.Context) ([]profile.Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var out []profile.Summary
	if err := c.get(ctx, "/api/v1/profile/list", &out); err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	return out, nil
}

// GetProfile fetches one complete profile by id. Returns ErrNotFound when
// the machine does not know the id.
func (c *Client) GetProfile(ctx context.Context, id string) (profile.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var p profile.Profile
	if err := c.get(ctx, "/api/v1/profile/get/"+id, &p); err != nil {
		return profile.Profile{}, fmt.Errorf("fetching profile %s: %w", id, err)
	}
	return p, nil
}

// FetchAllProfiles lists the machine's profiles and fetches each full
// document concurrently. Order follows the machine's listing.
func (c *Client) FetchAllProfiles(ctx context.Context) ([]profile.Profile, error) {
	summaries, err := c.ListProfiles(ctx)
	if err != nil {
		return nil, err
	}

	profiles := make([]profile.Profile, len(summaries))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, s := range summaries {
		g.Go(func() error {
			p, err := c.GetProfile(ctx, s.ID)
			if err != nil {
				return err
			}
			profiles[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return profiles, nil
}

// SaveProfile stores a profile on the machine. The same endpoint creates
// and updates: the profile's id decides which.
func (c *Client) SaveProfile(ctx context.Context, p profile.Profile) (profile.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var resp saveResponse
	if err := c.postJSON(ctx, "/api/v1/profile/save", p, &resp); err != nil {
		return profile.Profile{}, fmt.Errorf("saving profile: %w", err)
	}
	if resp.Profile != nil {
		return *resp.Profile, nil
	}
	return p, nil
}

// DeleteProfile removes a profile from the machine. Returns ErrNotFound
// when the id does not exist.
func (c *Client) DeleteProfile(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/v1/profile/delete/"+id, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deleting profile %s: %w", id, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return fmt.Errorf("deleting profile %s: %w", id, err)
	}
	return nil
}

// LoadProfileByID makes a stored profile the machine's active one without
// starting a shot.
func (c *Client) LoadProfileByID(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := c.get(ctx, "/api/v1/profile/load/"+id, nil); err != nil {
		return fmt.Errorf("loading profile %s: %w", id, err)
	}
	return nil
}

// LoadProfile sends a profile document to the machine as the active profile
// without saving it to the machine's library.
func (c *Client) LoadProfile(ctx context.Context, p profile.Profile) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := c.postJSON(ctx, "/api/v1/profile/load", p, nil); err != nil {
		return fmt.Errorf("loading profile: %w", err)
	}
	return nil
}

// ExecuteAction triggers a machine action: start, stop, tare, or reset.
// The device's response is returned as-is.
func (c *Client) ExecuteAction(ctx context.Context, action string) (json.RawMessage, error) {
	valid := false
	for _, a := range Actions {
		if a == action {
			valid = true
			break
		}
	}
	if !valid {
		return nil, fmt.Errorf("unknown action %q; must be one of: %s", action, strings.Join(Actions, ", "))
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var out json.RawMessage
	if err := c.get(ctx, "/api/v1/action/"+action, &out); err != nil {
		return nil, fmt.Errorf("executing action %s: %w", action, err)
	}
	return out, nil
}

// MachineStatus returns the machine's live status document (state, sensors,
// firmware) as-is.
func (c *Client) MachineStatus(ctx context.Context) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var out json.RawMessage
	if err := c.get(ctx, "/api/v1/machine", &out); err != nil {
		return nil, fmt.Errorf("fetching machine status: %w", err)
	}
	return out, nil
}

// Settings returns the machine's settings document as-is.
func (c *Client) Settings(ctx context.Context) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var out json.RawMessage
	if err := c.get(ctx, "/api/v1/settings", &out); err != nil {
		return nil, fmt.Errorf("fetching settings: %w", err)
	}
	return out, nil
}

// UpdateSetting changes one machine setting and returns the updated
// settings document.
func (c *Client) UpdateSetting(ctx context.Context, key string, value any) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var out json.RawMessage
	if err := c.postJSON(ctx, "/api/v1/settings", map[string]any{key: value}, &out); err != nil {
		return nil, fmt.Errorf("updating setting %s: %w", key, err)
	}
	return out, nil
}

// HistoryDates returns the dates for which the machine has recorded shots.
func (c *Client) HistoryDates(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var out []string
	if err := c.get(ctx, "/api/v1/history", &out); err != nil {
		return nil, fmt.Errorf("fetching shot history: %w", err)
	}
	return out, nil
}

// ShotFiles returns the shot file names recorded on the given date.
func (c *Client) ShotFiles(ctx context.Context, date string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var out []string
	if err := c.get(ctx, "/api/v1/history/"+date, &out); err != nil {
		return nil, fmt.Errorf("fetching shots for %s: %w", date, err)
	}
	return out, nil
}

// ShotURL builds the download URL for one recorded shot. No request is
// made; the caller (or the agent's user) fetches it.
func (c *Client) ShotURL(date, file string) string {
	return fmt.Sprintf("%s/api/v1/history/%s/%s", c.baseURL, date, file)
}

// get performs a GET and decodes the JSON response into out. A nil out
// discards the body.
func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// postJSON performs a POST with a JSON body and decodes the JSON response
// into out. A nil out discards the body.
func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// checkStatus maps non-2xx responses to ErrNotFound or *StatusError with
// the device's message.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, resp.Body)
		return ErrNotFound
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &StatusError{Code: resp.StatusCode, Message: deviceMessage(body)}
}

// deviceMessage extracts the human-readable message from an error body. The
// machine's API is not consistent about the field name.
func deviceMessage(body []byte) string {
	var fields struct {
		Error   string `json:"error"`
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &fields); err == nil {
		for _, m := range []string{fields.Error, fields.Detail, fields.Message} {
			if m != "" {
				return m
			}
		}
	}
	return strings.TrimSpace(string(body))
}
