package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
)

// Google's OAuth2 endpoints, spelled out so we don't pull in the whole
// cloud SDK just for two URLs.
var googleEndpoint = oauth2.Endpoint{
	AuthURL:  "https://accounts.google.com/o/oauth2/auth",
	TokenURL: "https://oauth2.googleapis.com/token",
}

const googleUserinfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

var ErrNoGoogleConfig = errors.New("google sign-in is not configured")

// GoogleProfile is what we keep from the userinfo response.
type GoogleProfile struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

type GoogleClient struct {
	cfg         *oauth2.Config
	userinfoURL string
}

func NewGoogleClient(clientID, clientSecret, redirectURL string) *GoogleClient {
	if clientID == "" || clientSecret == "" {
		return &GoogleClient{}
	}

	return &GoogleClient{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     googleEndpoint,
		},
		userinfoURL: googleUserinfoURL,
	}
}

func (g *GoogleClient) Enabled() bool {
	return g.cfg != nil
}

// AuthURL returns the consent-screen redirect for the given CSRF state.
func (g *GoogleClient) AuthURL(state string) (string, error) {
	if g.cfg == nil {
		return "", ErrNoGoogleConfig
	}

	return g.cfg.AuthCodeURL(state, oauth2.AccessTypeOffline), nil
}

// Exchange trades the callback code for a token and fetches the profile.
func (g *GoogleClient) Exchange(ctx context.Context, code string) (GoogleProfile, error) {
	if g.cfg == nil {
		return GoogleProfile{}, ErrNoGoogleConfig
	}

	token, err := g.cfg.Exchange(ctx, code)

	if err != nil {
		return GoogleProfile{}, fmt.Errorf("exchange code: %w", err)
	}

	client := g.cfg.Client(ctx, token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userinfoURL, nil)
	if err != nil {
		return GoogleProfile{}, err
	}

	resp, err := client.Do(req)

	if err != nil {
		return GoogleProfile{}, fmt.Errorf("fetch userinfo: %w", err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return GoogleProfile{}, fmt.Errorf("userinfo returned %d: %s", resp.StatusCode, body)
	}

	var profile GoogleProfile

	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return GoogleProfile{}, fmt.Errorf("decode userinfo: %w", err)
	}

	if profile.Email == "" {
		return GoogleProfile{}, errors.New("userinfo response missing email")
	}

	return profile, nil
}
