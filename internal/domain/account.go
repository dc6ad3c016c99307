package domain

import "time"

// Account es el registro durable de identidad interna.
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name,omitempty"`
	AvatarURL    *string   `json:"avatar_url,omitempty"`
	PasswordHash *string   `json:"-"`
	Provider     *string   `json:"provider,omitempty"`
	ProviderID   *string   `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Linked indica si la cuenta ya tiene un proveedor externo vinculado.
func (a Account) Linked() bool {
	return a.Provider != nil && *a.Provider != ""
}

// HasPassword indica si la cuenta soporta login local.
func (a Account) HasPassword() bool {
	return a.PasswordHash != nil && *a.PasswordHash != ""
}

// ExternalIdentity es la identidad normalizada que devuelve un proveedor
// OAuth; el resolver nunca distingue entre proveedores.
type ExternalIdentity struct {
	Provider   string
	ProviderID string
	Email      string
	FullName   string
	AvatarURL  *string
}
