package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/votos-system/internal/apperror"
	"github.com/mmeshcher/votos-system/internal/model"
)

// ApproveMember одобряет участника: pendiente становится usuario, отключённый участник
// снова становится активным с прежней ролью. Повторный вызов ничего не меняет.
func (s *Service) ApproveMember(ctx context.Context, target uuid.UUID, actor model.AuthContext) (*model.Member, error) {
	if !actor.IsAdmin() || actor.State != model.MemberActive {
		return nil, apperror.AdminRequired
	}

	m, err := s.repo.ApproveMember(ctx, target)
	if err != nil {
		return nil, storeError(err, "member not found")
	}

	s.metrics.MemberDecisions.WithLabelValues("approve").Inc()
	s.logger.Info("member approved",
		zap.String("member_id", target.String()),
		zap.String("admin_id", actor.UserID.String()),
		zap.String("role", string(m.Role)))

	return m, nil
}

// RejectMember отключает участника. Запись сохраняется.
func (s *Service) RejectMember(ctx context.Context, target uuid.UUID, actor model.AuthContext) (*model.Member, error) {
	if !actor.IsAdmin() || actor.State != model.MemberActive {
		return nil, apperror.AdminRequired
	}
	if target == actor.UserID {
		return nil, apperror.Validation("administrators cannot deactivate their own account", "id")
	}

	m, err := s.repo.RejectMember(ctx, target)
	if err != nil {
		return nil, storeError(err, "member not found")
	}

	s.metrics.MemberDecisions.WithLabelValues("reject").Inc()
	s.logger.Info("member deactivated",
		zap.String("member_id", target.String()),
		zap.String("admin_id", actor.UserID.String()))

	return m, nil
}
