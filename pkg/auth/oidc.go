package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// OIDCAuthenticator validates bearer tokens against the issuer's userinfo
// endpoint. It guards the mutating admin routes when OIDC is configured.
type OIDCAuthenticator struct {
	config *oauth2.Config
	issuer string
	client *http.Client
}

func NewOIDCAuthenticator(issuer, clientID, clientSecret string) (*OIDCAuthenticator, error) {
	if issuer == "" || clientID == "" {
		return nil, fmt.Errorf("OIDC configuration incomplete")
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  fmt.Sprintf("%s/authorize", issuer),
			TokenURL: fmt.Sprintf("%s/token", issuer),
		},
		Scopes: []string{"openid", "profile", "email"},
	}

	return &OIDCAuthenticator{
		config: config,
		issuer: strings.TrimRight(issuer, "/"),
		client: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (a *OIDCAuthenticator) ValidateToken(ctx context.Context, token string) (map[string]interface{}, error) {
	if token == "" {
		return nil, fmt.Errorf("token is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.issuer+"/userinfo", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("userinfo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token rejected by issuer (status %d)", resp.StatusCode)
	}

	var claims map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&claims); err != nil {
		return nil, fmt.Errorf("decoding userinfo: %w", err)
	}

	return claims, nil
}
