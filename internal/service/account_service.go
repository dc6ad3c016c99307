package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"careerbridge/internal/domain"
	"careerbridge/internal/repository"
)

// AccountService coordina registro local, verificación de credenciales y
// resolución de identidades externas contra el almacén de cuentas.
type AccountService struct {
	logger   *zap.Logger
	accounts repository.AccountRepository
}

func NewAccountService(logger *zap.Logger, accounts repository.AccountRepository) *AccountService {
	return &AccountService{
		logger:   logger,
		accounts: accounts,
	}
}

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrEmailTaken         = errors.New("email already registered")
	ErrOAuthInvalid       = errors.New("oauth identity invalid")
	ErrAccountNotFound    = errors.New("account not found")
)

// RegisterInput contiene los datos de un registro local.
type RegisterInput struct {
	Email    string
	Password string
	FullName string
}

// Register crea una cuenta local con password. Un email ya existente se
// reporta como ErrEmailTaken a partir de la violación de unicidad del
// almacén, nunca como error interno genérico.
func (s *AccountService) Register(ctx context.Context, input RegisterInput) (domain.Account, error) {
	email := normalizeEmail(input.Email)
	if email == "" {
		return domain.Account{}, ErrInvalidEmail
	}
	password := strings.TrimSpace(input.Password)
	if password == "" {
		return domain.Account{}, ErrInvalidCredentials
	}

	hash, err := HashPassword(password)
	if err != nil {
		return domain.Account{}, err
	}

	account := domain.Account{
		ID:           uuid.NewString(),
		Email:        email,
		FullName:     strings.TrimSpace(input.FullName),
		PasswordHash: &hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return domain.Account{}, ErrEmailTaken
		}
		return domain.Account{}, err
	}
	return account, nil
}

// Authenticate verifica un par email+password. Email inexistente, cuenta sin
// password (solo proveedor) y password incorrecto devuelven el mismo
// ErrInvalidCredentials para no permitir enumeración de cuentas.
func (s *AccountService) Authenticate(ctx context.Context, emailAddr, password string) (domain.Account, error) {
	emailAddr = normalizeEmail(emailAddr)
	password = strings.TrimSpace(password)
	if emailAddr == "" || password == "" {
		return domain.Account{}, ErrInvalidCredentials
	}

	account, err := s.accounts.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, ErrInvalidCredentials
		}
		return domain.Account{}, err
	}
	if !account.HasPassword() {
		return domain.Account{}, ErrInvalidCredentials
	}

	ok, err := VerifyPassword(*account.PasswordHash, password)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("stored password hash unusable",
				zap.Error(err), zap.String("account_id", account.ID))
		}
		return domain.Account{}, err
	}
	if !ok {
		return domain.Account{}, ErrInvalidCredentials
	}
	return account, nil
}

// ResolveOAuth mapea una identidad externa verificada a una cuenta interna.
// Orden de resolución: lookup por (provider, provider_id), lookup por email
// con vínculo implícito si la cuenta no tiene proveedor, y creación. Devuelve
// además si la cuenta fue creada en esta llamada.
func (s *AccountService) ResolveOAuth(ctx context.Context, identity domain.ExternalIdentity) (domain.Account, bool, error) {
	provider := strings.ToLower(strings.TrimSpace(identity.Provider))
	providerID := strings.TrimSpace(identity.ProviderID)
	if provider == "" || providerID == "" {
		return domain.Account{}, false, ErrOAuthInvalid
	}
	email := normalizeEmail(identity.Email)
	if email == "" {
		return domain.Account{}, false, ErrOAuthInvalid
	}

	identity.Provider = provider
	identity.ProviderID = providerID
	identity.Email = email
	return s.resolveOAuth(ctx, identity, true)
}

func (s *AccountService) resolveOAuth(ctx context.Context, identity domain.ExternalIdentity, retryOnRace bool) (domain.Account, bool, error) {
	account, err := s.accounts.GetByProvider(ctx, identity.Provider, identity.ProviderID)
	if err == nil {
		return account, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Account{}, false, err
	}

	existing, err := s.accounts.GetByEmail(ctx, identity.Email)
	if err == nil {
		if existing.Linked() {
			// Ya vinculada a otro proveedor: usuario existente, sin tocar el vínculo.
			return existing, false, nil
		}
		if err := s.accounts.LinkProvider(ctx, existing.ID, identity.Provider, identity.ProviderID, identity.AvatarURL); err != nil {
			if errors.Is(err, repository.ErrDuplicate) && retryOnRace {
				return s.resolveOAuth(ctx, identity, false)
			}
			return domain.Account{}, false, err
		}
		existing.Provider = &identity.Provider
		existing.ProviderID = &identity.ProviderID
		if identity.AvatarURL != nil {
			existing.AvatarURL = identity.AvatarURL
		}
		if s.logger != nil {
			s.logger.Info("linked external identity to existing account",
				zap.String("provider", identity.Provider), zap.String("account_id", existing.ID))
		}
		return existing, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Account{}, false, err
	}

	account = domain.Account{
		ID:         uuid.NewString(),
		Email:      identity.Email,
		FullName:   strings.TrimSpace(identity.FullName),
		AvatarURL:  identity.AvatarURL,
		Provider:   &identity.Provider,
		ProviderID: &identity.ProviderID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicate) && retryOnRace {
			// Un intento concurrente ganó la carrera; volver al lookup.
			return s.resolveOAuth(ctx, identity, false)
		}
		return domain.Account{}, false, err
	}
	return account, true, nil
}

// GetByID devuelve la cuenta indicada para consumidores del token validado.
func (s *AccountService) GetByID(ctx context.Context, id string) (domain.Account, error) {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, ErrAccountNotFound
		}
		return domain.Account{}, err
	}
	return account, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
