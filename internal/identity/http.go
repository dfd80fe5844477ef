// ABOUTME: HTTP adapter for the user-directory service
// ABOUTME: Normalizes the directory's loose name fields at this boundary

package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPResolver resolves users against the directory's REST API
// (GET {base}/users/{id}).
type HTTPResolver struct {
	base   string
	client *http.Client
	logger *slog.Logger
}

// NewHTTPResolver creates a resolver for the directory at baseURL.
// Pass zero timeout for a 5s default, nil logger for the default.
func NewHTTPResolver(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPResolver {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPResolver{
		base:   strings.TrimRight(baseURL, "/"),
		client: &http.Client{Timeout: timeout},
		logger: logger.With("component", "identity"),
	}
}

// directoryUser is the wire shape the directory answers with. Several name
// spellings exist across deployments; normalization happens here so the
// core only ever sees User.
type directoryUser struct {
	ID          string `json:"id"`
	FullName    string `json:"fullName"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	AccountType string `json:"accountType"`
}

// Resolve fetches and normalizes one user. 404 maps to ErrNotFound;
// transport failures and server errors map to ErrUnavailable.
func (r *HTTPResolver) Resolve(ctx context.Context, userID string) (*User, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", ErrNotFound)
	}

	endpoint := r.base + "/users/" + url.PathEscape(userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building directory request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, userID)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: directory returned %d", ErrUnavailable, resp.StatusCode)
	}

	var du directoryUser
	if err := json.NewDecoder(resp.Body).Decode(&du); err != nil {
		return nil, fmt.Errorf("%w: decoding directory response: %v", ErrUnavailable, err)
	}
	if du.ID == "" {
		du.ID = userID
	}
	return &User{
		ID:          du.ID,
		DisplayName: displayName(du),
		AccountType: du.AccountType,
	}, nil
}

// displayName picks the best available name spelling.
func displayName(du directoryUser) string {
	if du.FullName != "" {
		return du.FullName
	}
	name := strings.TrimSpace(du.FirstName + " " + du.LastName)
	if name != "" {
		return name
	}
	return du.ID
}
