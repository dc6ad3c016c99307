package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"careerbridge/internal/domain"
)

const githubProviderName = "github"

// GitHub implementa Provider contra la API OAuth de GitHub. A diferencia de
// Google, el perfil puede no exponer email: en ese caso se consulta la lista
// de emails y solo sirve el que sea primary y verified.
type GitHub struct {
	cfg         *oauth2.Config
	client      *http.Client
	userInfoURL string
	emailsURL   string
}

func NewGitHub(clientID, clientSecret, redirectURL string) *GitHub {
	return &GitHub{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     github.Endpoint,
			Scopes:       []string{"user:email"},
		},
		client:      &http.Client{Timeout: providerTimeout},
		userInfoURL: "https://api.github.com/user",
		emailsURL:   "https://api.github.com/user/emails",
	}
}

func (p *GitHub) Name() string {
	return githubProviderName
}

func (p *GitHub) AuthCodeURL(state string) string {
	return p.cfg.AuthCodeURL(state)
}

type githubUserInfo struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func (p *GitHub) Exchange(ctx context.Context, code string) (domain.ExternalIdentity, error) {
	token, err := exchangeCode(ctx, p.cfg, p.client, code)
	if err != nil {
		return domain.ExternalIdentity{}, err
	}

	var info githubUserInfo
	if err := p.getJSON(ctx, p.userInfoURL, token.AccessToken, &info); err != nil {
		return domain.ExternalIdentity{}, err
	}
	if info.ID == 0 {
		return domain.ExternalIdentity{}, fmt.Errorf("%w: github user info missing id", ErrMalformedResponse)
	}

	email := info.Email
	if email == "" {
		email, err = p.fetchVerifiedPrimaryEmail(ctx, token.AccessToken)
		if err != nil {
			return domain.ExternalIdentity{}, err
		}
	}

	fullName := info.Name
	if fullName == "" {
		fullName = info.Login
	}

	return domain.ExternalIdentity{
		Provider:   githubProviderName,
		ProviderID: fmt.Sprintf("%d", info.ID),
		Email:      email,
		FullName:   fullName,
		AvatarURL:  strPtr(info.AvatarURL),
	}, nil
}

// fetchVerifiedPrimaryEmail recorre la lista de emails de la cuenta. Un
// email no verificado o no primario nunca se usa para resolver cuentas.
func (p *GitHub) fetchVerifiedPrimaryEmail(ctx context.Context, accessToken string) (string, error) {
	var emails []githubEmail
	if err := p.getJSON(ctx, p.emailsURL, accessToken, &emails); err != nil {
		return "", err
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email, nil
		}
	}
	return "", ErrNoVerifiedEmail
}

func (p *GitHub) getJSON(ctx context.Context, url, accessToken string, out any) error {
	reqCtx, cancel := context.WithTimeout(ctx, providerTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("github request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "careerbridge")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: github status %d for %s", ErrProviderUnavailable, resp.StatusCode, url)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}
