package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/votos-system/internal/model"
)

// CreateAccount создаёт учётную запись провайдера аутентификации.
func (r *PostgresRepository) CreateAccount(ctx context.Context, a *model.Account) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO cuentas (id, email, password_hash) VALUES ($1, $2, $3) RETURNING created_at`,
		a.ID, a.Email, a.PasswordHash,
	).Scan(&a.CreatedAt)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return fmt.Errorf("%w: %s", ErrAccountExists, a.Email)
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// DeleteAccount удаляет учётную запись. Отсутствие записи не считается ошибкой.
func (r *PostgresRepository) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM cuentas WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return nil
}

// GetAccountByEmail возвращает учётную запись по адресу почты без учёта регистра.
func (r *PostgresRepository) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	var a model.Account
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, created_at FROM cuentas WHERE lower(email) = lower($1)`,
		email,
	).Scan(&a.ID, &a.Email, &a.PasswordHash, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &a, nil
}
