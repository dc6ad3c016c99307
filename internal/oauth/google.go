package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"careerbridge/internal/domain"
)

const googleProviderName = "google"

// Google implementa Provider contra la API OAuth2 de Google.
type Google struct {
	cfg         *oauth2.Config
	client      *http.Client
	userInfoURL string
}

func NewGoogle(clientID, clientSecret, redirectURL string) *Google {
	return &Google{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{"openid", "profile", "email"},
		},
		client:      &http.Client{Timeout: providerTimeout},
		userInfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
	}
}

func (p *Google) Name() string {
	return googleProviderName
}

func (p *Google) AuthCodeURL(state string) string {
	return p.cfg.AuthCodeURL(state)
}

type googleUserInfo struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

func (p *Google) Exchange(ctx context.Context, code string) (domain.ExternalIdentity, error) {
	token, err := exchangeCode(ctx, p.cfg, p.client, code)
	if err != nil {
		return domain.ExternalIdentity{}, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, providerTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return domain.ExternalIdentity{}, fmt.Errorf("google user info request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return domain.ExternalIdentity{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.ExternalIdentity{}, fmt.Errorf("%w: google user info status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return domain.ExternalIdentity{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if info.ID == "" || info.Email == "" {
		return domain.ExternalIdentity{}, fmt.Errorf("%w: google user info missing id or email", ErrMalformedResponse)
	}

	return domain.ExternalIdentity{
		Provider:   googleProviderName,
		ProviderID: info.ID,
		Email:      info.Email,
		FullName:   info.Name,
		AvatarURL:  strPtr(info.Picture),
	}, nil
}
