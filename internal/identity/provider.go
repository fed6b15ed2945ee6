package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/servio/backend/internal/apperr"
)

// ProviderConfig holds the settings for the external identity provider.
type ProviderConfig struct {
	// BaseURL is the provider's root URL, without the /auth/v1 suffix
	BaseURL string

	// APIKey is sent as the apikey header on every request
	APIKey string

	// Timeout for API requests
	Timeout time.Duration
}

// ProviderUser is the subset of the provider's user document the core reads.
type ProviderUser struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	UserMetadata struct {
		FullName string `json:"full_name"`
		Phone    string `json:"phone"`
	} `json:"user_metadata"`
}

// Contact returns the contact details carried by the provider's user document.
func (u *ProviderUser) Contact() Contact {
	phone := u.Phone
	if phone == "" {
		phone = u.UserMetadata.Phone
	}
	return Contact{Name: u.UserMetadata.FullName, Email: u.Email, Phone: phone}
}

// ProviderClient validates federated access tokens against the identity provider.
type ProviderClient struct {
	config     ProviderConfig
	httpClient *http.Client
}

// NewProviderClient creates a new identity provider client.
func NewProviderClient(config ProviderConfig) *ProviderClient {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	return &ProviderClient{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Configured reports whether a provider base URL is set.
func (c *ProviderClient) Configured() bool {
	return c.config.BaseURL != ""
}

// ValidateToken asks the provider who owns the access token. A rejected or
// malformed token yields apperr.ErrUnauthenticated.
func (c *ProviderClient) ValidateToken(ctx context.Context, accessToken string) (*ProviderUser, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("identity provider not configured: %w", apperr.ErrUnauthenticated)
	}

	url := strings.TrimRight(c.config.BaseURL, "/") + "/auth/v1/user"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("apikey", c.config.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("provider rejected token (status %d): %w", resp.StatusCode, apperr.ErrUnauthenticated)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, body)
	}

	var user ProviderUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if user.ID == "" {
		return nil, fmt.Errorf("provider response has no user id: %w", apperr.ErrUnauthenticated)
	}

	return &user, nil
}
