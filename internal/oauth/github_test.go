package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"golang.org/x/oauth2"
)

// newGitHubServer levanta una API de GitHub falsa: token endpoint con codes
// de un solo uso, perfil de usuario y lista de emails.
func newGitHubServer(t *testing.T, profileEmail, emailsJSON string) (*httptest.Server, *GitHub) {
	t.Helper()

	usedCodes := make(map[string]bool)
	mux := http.NewServeMux()

	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		code := r.FormValue("code")
		if code == "" || usedCodes[code] {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":"bad_verification_code"}`)
			return
		}
		usedCodes[code] = true
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"gh-token-123","token_type":"bearer"}`)
	})

	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer gh-token-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":77,"login":"octo","name":"Octo Dev","email":%q,"avatar_url":"https://avatars.example.com/77"}`, profileEmail)
	})

	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer gh-token-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, emailsJSON)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	provider := &GitHub{
		cfg: &oauth2.Config{
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			RedirectURL:  "http://localhost:8080/auth/github/callback",
			Endpoint: oauth2.Endpoint{
				AuthURL:   srv.URL + "/login/oauth/authorize",
				TokenURL:  srv.URL + "/login/oauth/access_token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
			Scopes: []string{"user:email"},
		},
		client:      srv.Client(),
		userInfoURL: srv.URL + "/user",
		emailsURL:   srv.URL + "/user/emails",
	}
	return srv, provider
}

func TestGitHub_ExchangeProfileEmail(t *testing.T) {
	_, provider := newGitHubServer(t, "octo@example.com", `[]`)

	identity, err := provider.Exchange(context.Background(), "code-1")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if identity.Provider != "github" {
		t.Fatalf("expected provider github, got %q", identity.Provider)
	}
	if identity.ProviderID != "77" {
		t.Fatalf("expected provider id 77, got %q", identity.ProviderID)
	}
	if identity.Email != "octo@example.com" {
		t.Fatalf("expected profile email, got %q", identity.Email)
	}
	if identity.FullName != "Octo Dev" {
		t.Fatalf("expected full name from profile, got %q", identity.FullName)
	}
	if identity.AvatarURL == nil || *identity.AvatarURL != "https://avatars.example.com/77" {
		t.Fatalf("expected avatar url, got %v", identity.AvatarURL)
	}
}

func TestGitHub_ExchangeEmailFallback(t *testing.T) {
	emails := `[
		{"email":"secundario@example.com","primary":false,"verified":true},
		{"email":"primario@example.com","primary":true,"verified":true}
	]`
	_, provider := newGitHubServer(t, "", emails)

	identity, err := provider.Exchange(context.Background(), "code-1")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if identity.Email != "primario@example.com" {
		t.Fatalf("expected primary verified email, got %q", identity.Email)
	}
}

func TestGitHub_ExchangeNoVerifiedEmail(t *testing.T) {
	emails := `[
		{"email":"sin-verificar@example.com","primary":true,"verified":false},
		{"email":"verificado@example.com","primary":false,"verified":true}
	]`
	_, provider := newGitHubServer(t, "", emails)

	_, err := provider.Exchange(context.Background(), "code-1")
	if !errors.Is(err, ErrNoVerifiedEmail) {
		t.Fatalf("expected ErrNoVerifiedEmail, got %v", err)
	}
}

// Un authorization code solo vale una vez: el replay falla en el canje, no en
// user-info.
func TestGitHub_ExchangeCodeReplay(t *testing.T) {
	_, provider := newGitHubServer(t, "octo@example.com", `[]`)
	ctx := context.Background()

	if _, err := provider.Exchange(ctx, "code-1"); err != nil {
		t.Fatalf("first exchange: %v", err)
	}
	if _, err := provider.Exchange(ctx, "code-1"); !errors.Is(err, ErrCodeExchange) {
		t.Fatalf("expected ErrCodeExchange on replay, got %v", err)
	}
}

func TestGitHub_ExchangeProviderDown(t *testing.T) {
	srv, provider := newGitHubServer(t, "octo@example.com", `[]`)
	srv.Close()

	if _, err := provider.Exchange(context.Background(), "code-1"); !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestGitHub_AuthCodeURLCarriesState(t *testing.T) {
	_, provider := newGitHubServer(t, "octo@example.com", `[]`)

	authURL := provider.AuthCodeURL("state-abc")
	parsed, err := url.Parse(authURL)
	if err != nil {
		t.Fatalf("parse auth url: %v", err)
	}
	if got := parsed.Query().Get("state"); got != "state-abc" {
		t.Fatalf("expected state in auth url, got %q", got)
	}
	if got := parsed.Query().Get("client_id"); got != "client-id" {
		t.Fatalf("expected client_id in auth url, got %q", got)
	}
	if !strings.Contains(parsed.Path, "/login/oauth/authorize") {
		t.Fatalf("unexpected auth path %q", parsed.Path)
	}
}
