package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/mmeshcher/votos-system/internal/apperror"
	"github.com/mmeshcher/votos-system/internal/model"
	"github.com/mmeshcher/votos-system/internal/repository"
	"github.com/mmeshcher/votos-system/internal/validation"
)

// Requirement задаёт уровень доступа, требуемый операцией.
type Requirement int

const (
	// RequireMember пропускает любого неотключённого участника, включая ожидающих одобрения.
	RequireMember Requirement = iota
	// RequireActive требует роль usuario или admin.
	RequireActive
	// RequireAdmin требует роль admin.
	RequireAdmin
)

// Authorize проверяет участника subject и возвращает контекст авторизации.
// Вызывается на каждый запрос; результат не кэшируется.
func (s *Service) Authorize(ctx context.Context, subject uuid.UUID, req Requirement) (model.AuthContext, error) {
	ac, err := s.authorize(ctx, subject, req)
	if err != nil {
		s.metrics.AuthorizationDenied.WithLabelValues(string(apperror.KindOf(err))).Inc()
	}
	return ac, err
}

func (s *Service) authorize(ctx context.Context, subject uuid.UUID, req Requirement) (model.AuthContext, error) {
	if subject == uuid.Nil {
		return model.AuthContext{}, apperror.Unauthenticated
	}

	m, err := s.repo.GetMember(ctx, subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.AuthContext{}, apperror.ProfileNotFound
		}
		return model.AuthContext{}, storeError(err, "")
	}

	if m.State == model.MemberInactive {
		return model.AuthContext{}, apperror.AccountInactive
	}
	if req >= RequireActive && m.Role == model.RolePending {
		return model.AuthContext{}, apperror.PendingApproval
	}
	if req == RequireAdmin && m.Role != model.RoleAdmin {
		return model.AuthContext{}, apperror.AdminRequired
	}

	return model.AuthContext{
		UserID: m.ID,
		Role:   m.Role,
		State:  m.State,
	}, nil
}

// Login проверяет учётные данные у провайдера аутентификации и допускает только активных участников.
func (s *Service) Login(ctx context.Context, email, password string) (model.AuthContext, error) {
	email = strings.TrimSpace(email)
	if missing := validation.MissingFields(
		validation.Field{Name: "email", Value: email},
		validation.Field{Name: "password", Value: password},
	); len(missing) > 0 {
		return model.AuthContext{}, apperror.Validation("missing required fields", missing...)
	}
	if !validation.IsValidEmail(email) {
		return model.AuthContext{}, apperror.Validation("invalid email address", "email")
	}

	id, err := s.auth.Authenticate(ctx, email, password)
	if err != nil {
		return model.AuthContext{}, err
	}

	return s.Authorize(ctx, id, RequireActive)
}
