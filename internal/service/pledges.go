package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/votos-system/internal/apperror"
	"github.com/mmeshcher/votos-system/internal/model"
	"github.com/mmeshcher/votos-system/internal/repository"
	"github.com/mmeshcher/votos-system/internal/validation"
)

// PledgeInput содержит данные нового обета.
type PledgeInput struct {
	MemberID uuid.UUID
	Purpose  string
	Total    float64
	Deadline string
}

// CreatePledge создаёт обет участника с нулевой собранной суммой.
func (s *Service) CreatePledge(ctx context.Context, in PledgeInput, actor model.AuthContext) (uuid.UUID, error) {
	if !actor.CanOperate() {
		return uuid.Nil, apperror.Unauthorized
	}

	purpose := validation.CleanText(in.Purpose)
	var missing []string
	if in.MemberID == uuid.Nil {
		missing = append(missing, "miembro_id")
	}
	missing = append(missing, validation.MissingFields(
		validation.Field{Name: "proposito", Value: purpose},
		validation.Field{Name: "fecha_limite", Value: in.Deadline},
	)...)
	if len(missing) > 0 {
		return uuid.Nil, apperror.Validation("missing required fields", missing...)
	}

	total, ok := validation.ToCents(in.Total)
	if !ok || total <= 0 {
		return uuid.Nil, apperror.Validation("monto_total must be greater than zero", "monto_total")
	}

	deadline, err := validation.ParseDate(in.Deadline)
	if err != nil {
		return uuid.Nil, apperror.Validation("fecha_limite must be a YYYY-MM-DD date", "fecha_limite")
	}

	owner, err := s.repo.GetMember(ctx, in.MemberID)
	if err != nil {
		return uuid.Nil, storeError(err, "member not found")
	}
	if owner.State != model.MemberActive || (owner.Role != model.RoleUser && owner.Role != model.RoleAdmin) {
		return uuid.Nil, apperror.Validation("pledges can be created only for active approved members", "miembro_id")
	}

	p := &model.Pledge{
		ID:         uuid.New(),
		MemberID:   owner.ID,
		Purpose:    purpose,
		TotalCents: total,
		Deadline:   deadline,
		State:      model.PledgeActive,
		CreatedBy:  actor.UserID,
	}
	if err := s.repo.CreatePledge(ctx, p); err != nil {
		return uuid.Nil, storeError(err, "")
	}

	s.metrics.PledgesCreated.Inc()
	s.logger.Info("pledge created",
		zap.String("pledge_id", p.ID.String()),
		zap.String("member_id", owner.ID.String()),
		zap.Int64("total_cents", total))

	return p.ID, nil
}

// GetPledge возвращает обет с владельцем и платежами, начиная с последнего.
func (s *Service) GetPledge(ctx context.Context, id uuid.UUID) (*model.PledgeDetail, error) {
	p, err := s.repo.GetPledge(ctx, id)
	if err != nil {
		return nil, storeError(err, "pledge not found")
	}

	owner, err := s.repo.GetMember(ctx, p.MemberID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.Wrap(apperror.KindInternal, "pledge owner is missing", err)
		}
		return nil, storeError(err, "")
	}

	payments, err := s.repo.GetPaymentsByPledge(ctx, id)
	if err != nil {
		return nil, storeError(err, "")
	}

	return &model.PledgeDetail{
		Pledge:   *p,
		Member:   *owner,
		Payments: payments,
	}, nil
}

// ListPledges возвращает обеты по фильтру, отсортированные по сроку.
func (s *Service) ListPledges(ctx context.Context, f model.PledgeFilter) ([]model.Pledge, error) {
	if f.State != "" && !f.State.Valid() {
		return nil, apperror.Validation("unknown pledge state", "estado")
	}
	f.Search = strings.TrimSpace(f.Search)

	pledges, err := s.repo.ListPledges(ctx, f)
	if err != nil {
		return nil, storeError(err, "")
	}
	return pledges, nil
}

// CompletePledge явно завершает полностью собранный обет.
func (s *Service) CompletePledge(ctx context.Context, id uuid.UUID, actor model.AuthContext) error {
	if !actor.CanOperate() {
		return apperror.Unauthorized
	}
	if err := s.repo.TransitionPledge(ctx, id, model.PledgeCompleted, actor.UserID); err != nil {
		return storeError(err, "pledge not found")
	}
	s.logger.Info("pledge completed",
		zap.String("pledge_id", id.String()),
		zap.String("by", actor.UserID.String()))
	return nil
}

// CancelPledge отменяет активный обет. Доступно только администратору.
func (s *Service) CancelPledge(ctx context.Context, id uuid.UUID, actor model.AuthContext) error {
	if !actor.IsAdmin() || actor.State != model.MemberActive {
		return apperror.AdminRequired
	}
	if err := s.repo.TransitionPledge(ctx, id, model.PledgeCancelled, actor.UserID); err != nil {
		return storeError(err, "pledge not found")
	}
	s.logger.Info("pledge cancelled",
		zap.String("pledge_id", id.String()),
		zap.String("admin_id", actor.UserID.String()))
	return nil
}

// Dashboard возвращает агрегаты по активным обетам.
func (s *Service) Dashboard(ctx context.Context) (*model.DashboardStats, error) {
	stats, err := s.repo.GetDashboardStats(ctx)
	if err != nil {
		return nil, storeError(err, "")
	}
	return stats, nil
}
