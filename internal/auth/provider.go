// Package auth реализует провайдер аутентификации: учётные записи с паролями,
// хранящиеся отдельно от справочника участников.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/votos-system/internal/apperror"
	"github.com/mmeshcher/votos-system/internal/model"
	"github.com/mmeshcher/votos-system/internal/repository"
)

// AccountStore описывает хранилище учётных записей.
type AccountStore interface {
	CreateAccount(ctx context.Context, a *model.Account) error
	DeleteAccount(ctx context.Context, id uuid.UUID) error
	GetAccountByEmail(ctx context.Context, email string) (*model.Account, error)
}

// Provider выдаёт подтверждённый идентификатор пользователя по почте и паролю.
type Provider struct {
	store     AccountStore
	cost      int
	dummyHash []byte
}

// NewProvider создаёт провайдер. cost задаёт стоимость bcrypt, 0 означает bcrypt.DefaultCost.
func NewProvider(store AccountStore, cost int) *Provider {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	// Хэш для сравнения при неизвестной почте: время ответа не выдаёт, есть ли учётная запись.
	dummy, _ := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), cost)
	return &Provider{
		store:     store,
		cost:      cost,
		dummyHash: dummy,
	}
}

// CreateAccount создаёт учётную запись и возвращает её идентификатор.
func (p *Provider) CreateAccount(ctx context.Context, email, password string) (uuid.UUID, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return uuid.Nil, apperror.Validation("password is too long", "password")
		}
		return uuid.Nil, fmt.Errorf("hash password: %w", err)
	}

	a := &model.Account{
		ID:           uuid.New(),
		Email:        strings.TrimSpace(email),
		PasswordHash: hash,
	}
	if err := p.store.CreateAccount(ctx, a); err != nil {
		if errors.Is(err, repository.ErrAccountExists) {
			return uuid.Nil, apperror.DuplicateMember.With("email is already registered")
		}
		return uuid.Nil, apperror.Wrap(apperror.KindTransient, apperror.Transient.Message, err)
	}

	return a.ID, nil
}

// DeleteAccount удаляет учётную запись. Используется как компенсирующее действие.
func (p *Provider) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	if err := p.store.DeleteAccount(ctx, id); err != nil {
		return apperror.Wrap(apperror.KindTransient, apperror.Transient.Message, err)
	}
	return nil
}

// Authenticate проверяет почту и пароль и возвращает идентификатор учётной записи.
func (p *Provider) Authenticate(ctx context.Context, email, password string) (uuid.UUID, error) {
	a, err := p.store.GetAccountByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(p.dummyHash, []byte(password))
			return uuid.Nil, apperror.InvalidCredentials
		}
		return uuid.Nil, apperror.Wrap(apperror.KindTransient, apperror.Transient.Message, err)
	}

	if err := bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return uuid.Nil, apperror.InvalidCredentials
		}
		return uuid.Nil, fmt.Errorf("verify password: %w", err)
	}

	return a.ID, nil
}
