package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/votos-system/internal/apperror"
	"github.com/mmeshcher/votos-system/internal/model"
	"github.com/mmeshcher/votos-system/internal/validation"
)

// MemberInput содержит данные нового участника.
type MemberInput struct {
	FirstName string
	LastName  string
	Cedula    string
	Email     *string
	Phone     *string
	Address   *string
	BirthDate string
	Gender    string
}

// SignUpInput содержит данные самостоятельной регистрации.
type SignUpInput struct {
	MemberInput
	Password string
}

// CreateMember создаёт участника без учётной записи. Участник получает роль pendiente.
func (s *Service) CreateMember(ctx context.Context, in MemberInput, actor model.AuthContext) (uuid.UUID, error) {
	if !actor.CanOperate() {
		return uuid.Nil, apperror.Unauthorized
	}

	m, err := buildMember(in)
	if err != nil {
		return uuid.Nil, err
	}
	m.ID = uuid.New()

	if err := s.repo.CreateMember(ctx, m); err != nil {
		return uuid.Nil, storeError(err, "")
	}

	s.metrics.MembersCreated.Inc()
	s.logger.Info("member created",
		zap.String("member_id", m.ID.String()),
		zap.String("created_by", actor.UserID.String()))

	return m.ID, nil
}

// SignUp регистрирует участника вместе с учётной записью провайдера аутентификации.
// Если участника сохранить не удалось, учётная запись удаляется.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (uuid.UUID, error) {
	email := strings.TrimSpace(deref(in.Email))
	if missing := validation.MissingFields(
		validation.Field{Name: "nombres", Value: in.FirstName},
		validation.Field{Name: "apellidos", Value: in.LastName},
		validation.Field{Name: "cedula", Value: in.Cedula},
		validation.Field{Name: "email", Value: email},
		validation.Field{Name: "password", Value: in.Password},
		validation.Field{Name: "telefono", Value: deref(in.Phone)},
	); len(missing) > 0 {
		return uuid.Nil, apperror.Validation("missing required fields", missing...)
	}
	if !validation.IsValidPassword(in.Password) {
		return uuid.Nil, apperror.Validation("password must be at least 6 characters long", "password")
	}

	m, err := buildMember(in.MemberInput)
	if err != nil {
		return uuid.Nil, err
	}

	id, err := s.auth.CreateAccount(ctx, email, in.Password)
	if err != nil {
		return uuid.Nil, err
	}
	m.ID = id

	if err := s.repo.CreateMember(ctx, m); err != nil {
		if delErr := s.auth.DeleteAccount(context.WithoutCancel(ctx), id); delErr != nil {
			s.logger.Error("compensating account delete failed",
				zap.String("account_id", id.String()), zap.Error(delErr))
		} else {
			s.logger.Warn("account deleted after member insert failure",
				zap.String("account_id", id.String()), zap.Error(err))
		}
		return uuid.Nil, storeError(err, "")
	}

	s.metrics.MembersCreated.Inc()
	s.logger.Info("member signed up", zap.String("member_id", id.String()))

	return id, nil
}

func buildMember(in MemberInput) (*model.Member, error) {
	m := &model.Member{
		FirstName: validation.CleanText(in.FirstName),
		LastName:  validation.CleanText(in.LastName),
		Cedula:    strings.TrimSpace(in.Cedula),
		Email:     trimmed(in.Email),
		Phone:     trimmed(in.Phone),
		Address:   validation.OptionalText(in.Address),
		Role:      model.RolePending,
		State:     model.MemberActive,
	}

	if missing := validation.MissingFields(
		validation.Field{Name: "nombres", Value: m.FirstName},
		validation.Field{Name: "apellidos", Value: m.LastName},
		validation.Field{Name: "cedula", Value: m.Cedula},
	); len(missing) > 0 {
		return nil, apperror.Validation("missing required fields", missing...)
	}
	if !validation.IsValidCedula(m.Cedula) {
		return nil, apperror.Validation("cedula may contain only letters, digits and dashes", "cedula")
	}
	if m.Email != nil && !validation.IsValidEmail(*m.Email) {
		return nil, apperror.Validation("invalid email address", "email")
	}

	if bd := strings.TrimSpace(in.BirthDate); bd != "" {
		d, err := validation.ParseDate(bd)
		if err != nil {
			return nil, apperror.Validation("fecha_nacimiento must be a YYYY-MM-DD date", "fecha_nacimiento")
		}
		m.BirthDate = &d
	}

	if g := strings.ToUpper(strings.TrimSpace(in.Gender)); g != "" {
		gender := model.Gender(g)
		if gender != model.GenderMale && gender != model.GenderFemale {
			return nil, apperror.Validation("genero must be M or F", "genero")
		}
		m.Gender = &gender
	}

	return m, nil
}

// GetMember возвращает участника по идентификатору.
func (s *Service) GetMember(ctx context.Context, id uuid.UUID) (*model.Member, error) {
	m, err := s.repo.GetMember(ctx, id)
	if err != nil {
		return nil, storeError(err, "member not found")
	}
	return m, nil
}

// ListMembers возвращает участников по фильтру, отсортированных по фамилии и имени.
func (s *Service) ListMembers(ctx context.Context, f model.MemberFilter) ([]model.Member, error) {
	if f.State != "" && !f.State.Valid() {
		return nil, apperror.Validation("unknown member state", "estado")
	}
	if f.Role != "" && !f.Role.Valid() {
		return nil, apperror.Validation("unknown member role", "rol")
	}
	f.Search = strings.TrimSpace(f.Search)

	members, err := s.repo.ListMembers(ctx, f)
	if err != nil {
		return nil, storeError(err, "")
	}
	return members, nil
}

// BootstrapAdmin назначает участника администратором. Вызывается только при старте сервера
// по явной настройке и оставляет запись в журнале аудита.
func (s *Service) BootstrapAdmin(ctx context.Context, id uuid.UUID) error {
	m, err := s.repo.PromoteAdmin(ctx, id)
	if err != nil {
		return storeError(err, "member not found")
	}
	s.logger.Warn("administrator designated at startup",
		zap.String("member_id", m.ID.String()),
		zap.String("cedula", m.Cedula))
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
