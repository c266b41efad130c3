// JSON-over-HTTP implementation of the backend client.
package resthttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"cargoline/internal/integrations/backend"
	"cargoline/internal/modules/drivers"
	"cargoline/internal/modules/jobs"
	"cargoline/internal/modules/tracking"
	"cargoline/internal/types"
)

type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:9000"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc:   &http.Client{Timeout: timeout},
	}
}

func (c *Client) PushLocation(ctx context.Context, subjectID types.ID, sample tracking.Sample) error {
	return c.post(ctx, fmt.Sprintf("/tracking/%s/location", subjectID), sample)
}

func (c *Client) MirrorJob(ctx context.Context, j jobs.Job) error {
	return c.post(ctx, "/jobs/"+string(j.ID), j)
}

func (c *Client) UpsertDriver(ctx context.Context, d drivers.Driver) error {
	return c.post(ctx, "/drivers/"+string(d.ID), d)
}

// FetchDrivers pulls the driver roster for bootstrap. Retries a few times
// with backoff before giving up, since it runs during startup when the
// backend may still be coming up.
func (c *Client) FetchDrivers(ctx context.Context) ([]drivers.Driver, error) {
	var lastErr error
	backoff := 500 * time.Millisecond
	for attempt := 0; attempt < 4; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		out, err := c.fetchDriversOnce(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !errors.Is(err, backend.ErrUnavailable) {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *Client) fetchDriversOnce(ctx context.Context) ([]drivers.Driver, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/drivers", nil)
	if err != nil {
		return nil, errors.Wrap(err, "new request")
	}
	c.authorize(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, errors.Wrap(backend.ErrUnavailable, err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 == 5 {
		return nil, errors.Wrapf(backend.ErrUnavailable, "http %d", resp.StatusCode)
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("fetch drivers: http %d", resp.StatusCode)
	}

	var out []drivers.Driver
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrap(err, "decode drivers")
	}
	return out, nil
}

func (c *Client) Broadcast(ctx context.Context, roles []types.Role, title, body string, payload map[string]string) error {
	return c.post(ctx, "/notifications/broadcast", map[string]any{
		"roles":   roles,
		"title":   title,
		"body":    body,
		"payload": payload,
	})
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "marshal payload")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return errors.Wrap(backend.ErrUnavailable, err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 == 5 {
		return errors.Wrapf(backend.ErrUnavailable, "http %d", resp.StatusCode)
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("backend %s: http %d", path, resp.StatusCode)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
