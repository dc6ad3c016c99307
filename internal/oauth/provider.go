// Package oauth implementa los clientes de proveedores de identidad
// externos. Cada proveedor normaliza su respuesta de user-info en un
// domain.ExternalIdentity; ninguna decisión de cuentas ocurre acá.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"careerbridge/internal/domain"
)

// Taxonomía de fallos del flujo OAuth. Ninguno se reintenta desde este
// paquete; la política de retry (si existe) pertenece al llamador.
var (
	ErrCodeExchange        = errors.New("authorization code exchange failed")
	ErrProviderUnavailable = errors.New("oauth provider unavailable")
	ErrMalformedResponse   = errors.New("malformed provider response")
	ErrNoVerifiedEmail     = errors.New("no verified email for external account")
	ErrUnknownProvider     = errors.New("unknown oauth provider")
)

const providerTimeout = 10 * time.Second

// Provider define el contrato de un proveedor de identidad externo.
type Provider interface {
	// Name devuelve el identificador del proveedor (ej. "google", "github").
	Name() string

	// AuthCodeURL construye la URL de autorización con el state dado.
	AuthCodeURL(state string) string

	// Exchange canjea el authorization code (un solo uso) y obtiene la
	// identidad normalizada desde el endpoint de user-info.
	Exchange(ctx context.Context, code string) (domain.ExternalIdentity, error)
}

// Registry mantiene los proveedores configurados, indexados por nombre.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(list ...Provider) *Registry {
	m := make(map[string]Provider, len(list))
	for _, p := range list {
		m[p.Name()] = p
	}
	return &Registry{providers: m}
}

// Get devuelve el proveedor por nombre o ErrUnknownProvider.
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return p, nil
}

// Names lista los proveedores registrados, para logging de arranque.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}

// exchangeCode canjea el code clasificando el fallo: respuesta de rechazo
// del token endpoint (incluye codes reusados) contra fallo de transporte.
func exchangeCode(ctx context.Context, cfg *oauth2.Config, client *http.Client, code string) (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(ctx, providerTimeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, client)

	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return nil, fmt.Errorf("%w: token endpoint status %d", ErrCodeExchange, retrieveErr.Response.StatusCode)
		}
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("%w: empty access token", ErrMalformedResponse)
	}
	return token, nil
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
