package session

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
)

const (
	profileMePath       = "/api/users/me"
	profileRegisterPath = "/api/auth/register"
)

// ProfileClient talks to the backend profile service over HTTP/JSON with
// bearer authentication.
type ProfileClient struct {
	baseURL    string
	httpClient *http.Client
	logger     Logger
}

var _ ProfileService = (*ProfileClient)(nil)

// ProfileClientOption customizes the client.
type ProfileClientOption func(*ProfileClient)

// WithProfileHTTPClient overrides the underlying HTTP client.
func WithProfileHTTPClient(client *http.Client) ProfileClientOption {
	return func(c *ProfileClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithProfileLogger sets the logger.
func WithProfileLogger(logger Logger) ProfileClientOption {
	return func(c *ProfileClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewProfileClient creates a client rooted at baseURL.
func NewProfileClient(baseURL string, opts ...ProfileClientOption) *ProfileClient {
	c := &ProfileClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

// Me fetches the profile for the bearer of token. A 404 maps to
// ErrProfileNotFound, the valid unprovisioned state.
func (c *ProfileClient) Me(ctx context.Context, token string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+profileMePath, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to build profile request")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "profile request failed")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrProfileNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, c.statusError("me", resp)
	}

	profile := &Profile{}
	if err := json.NewDecoder(resp.Body).Decode(profile); err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "failed to decode profile response")
	}

	return profile, nil
}

// EnsureProfile upserts a profile for the now-authenticated identity. A
// conflict answer means the profile already exists and is treated as success.
func (c *ProfileClient) EnsureProfile(ctx context.Context, token string, params ProvisionParams) error {
	body, err := json.Marshal(params)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to encode provisioning payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+profileRegisterPath, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to build provisioning request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "provisioning request failed")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusConflict:
		c.logger.Debug("profile already provisioned")
		return nil
	default:
		return c.statusError("ensure_profile", resp)
	}
}

func (c *ProfileClient) statusError(operation string, resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return errors.New("unexpected profile service response", errors.CategoryOperation).
		WithTextCode("PROFILE_SERVICE_ERROR").
		WithMetadata(map[string]any{
			"operation": operation,
			"status":    resp.StatusCode,
			"body":      strings.TrimSpace(string(snippet)),
		})
}
