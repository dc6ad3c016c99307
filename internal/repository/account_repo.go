package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"careerbridge/internal/domain"
)

// ErrDuplicate señala una violación de unicidad en el almacén de cuentas:
// email repetido o par (oauth_provider, oauth_id) ya vinculado. Es el árbitro
// autoritativo ante escrituras concurrentes; quien lo reciba debe volver a
// resolver por lookup en vez de propagar un error interno.
var ErrDuplicate = errors.New("duplicate account record")

// AccountRepository define el contrato de persistencia para cuentas.
type AccountRepository interface {
	Create(ctx context.Context, account domain.Account) error
	GetByID(ctx context.Context, id string) (domain.Account, error)
	GetByEmail(ctx context.Context, email string) (domain.Account, error)
	GetByProvider(ctx context.Context, provider, providerID string) (domain.Account, error)
	LinkProvider(ctx context.Context, id, provider, providerID string, avatarURL *string) error
}

// PgAccountRepository implementa AccountRepository usando pgxpool.
//
// Esquema esperado: tabla users con unique index sobre email y unique index
// parcial sobre (oauth_provider, oauth_id) cuando ambos no son null.
type PgAccountRepository struct {
	pool *pgxpool.Pool
}

func NewPgAccountRepository(pool *pgxpool.Pool) *PgAccountRepository {
	return &PgAccountRepository{pool: pool}
}

const accountColumns = `id, email, full_name, avatar_url, password_hash, oauth_provider, oauth_id, created_at`

func (r *PgAccountRepository) Create(ctx context.Context, account domain.Account) error {
	const query = `
		INSERT INTO users (id, email, full_name, avatar_url, password_hash, oauth_provider, oauth_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		account.ID,
		account.Email,
		account.FullName,
		account.AvatarURL,
		account.PasswordHash,
		account.Provider,
		account.ProviderID,
		account.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *PgAccountRepository) GetByID(ctx context.Context, id string) (domain.Account, error) {
	const query = `
		SELECT ` + accountColumns + `
		FROM users
		WHERE id = $1
	`
	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

func (r *PgAccountRepository) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	const query = `
		SELECT ` + accountColumns + `
		FROM users
		WHERE lower(email) = lower($1)
	`
	return r.scanOne(r.pool.QueryRow(ctx, query, email))
}

func (r *PgAccountRepository) GetByProvider(ctx context.Context, provider, providerID string) (domain.Account, error) {
	const query = `
		SELECT ` + accountColumns + `
		FROM users
		WHERE oauth_provider = $1 AND oauth_id = $2
	`
	return r.scanOne(r.pool.QueryRow(ctx, query, provider, providerID))
}

// LinkProvider adjunta una identidad externa a una cuenta sin vínculo previo.
// La condición oauth_provider IS NULL hace que un vínculo concurrente deje la
// escritura sin filas afectadas; eso se reporta como ErrDuplicate.
func (r *PgAccountRepository) LinkProvider(ctx context.Context, id, provider, providerID string, avatarURL *string) error {
	const query = `
		UPDATE users
		SET oauth_provider = $2, oauth_id = $3, avatar_url = COALESCE($4, avatar_url)
		WHERE id = $1 AND oauth_provider IS NULL
	`
	tag, err := r.pool.Exec(ctx, query, id, provider, providerID, avatarURL)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicate
	}
	return nil
}

func (r *PgAccountRepository) scanOne(row pgx.Row) (domain.Account, error) {
	var a domain.Account
	err := row.Scan(
		&a.ID,
		&a.Email,
		&a.FullName,
		&a.AvatarURL,
		&a.PasswordHash,
		&a.Provider,
		&a.ProviderID,
		&a.CreatedAt,
	)
	if err != nil {
		return domain.Account{}, err
	}
	return a, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
