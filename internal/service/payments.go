package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/votos-system/internal/apperror"
	"github.com/mmeshcher/votos-system/internal/model"
	"github.com/mmeshcher/votos-system/internal/repository"
	"github.com/mmeshcher/votos-system/internal/validation"
)

// PaymentInput содержит данные платежа по обету.
type PaymentInput struct {
	PledgeID uuid.UUID
	Amount   float64
	PaidAt   *time.Time
	Note     *string
}

// RecordPayment записывает платёж и увеличивает собранную сумму обета.
// Платёж, превышающий остаток, отклоняется целиком и никогда не урезается.
func (s *Service) RecordPayment(ctx context.Context, in PaymentInput, actor model.AuthContext) (*model.PaymentResult, error) {
	if !actor.CanOperate() {
		return nil, apperror.Unauthorized
	}

	pledge, err := s.repo.GetPledge(ctx, in.PledgeID)
	if err != nil {
		return nil, storeError(err, "pledge not found")
	}

	amount, ok := validation.ToCents(in.Amount)
	if !ok || amount <= 0 {
		s.metrics.PaymentsRejected.WithLabelValues("invalid_amount").Inc()
		return nil, apperror.InvalidAmount
	}

	paidAt := s.now()
	if in.PaidAt != nil {
		if s.afterToday(*in.PaidAt) {
			return nil, apperror.Validation("fecha_pago cannot be in the future", "fecha_pago")
		}
		paidAt = *in.PaidAt
	}

	if pledge.State != model.PledgeActive {
		s.metrics.PaymentsRejected.WithLabelValues("not_active").Inc()
		return nil, apperror.Validation("payments can be recorded only for active pledges", "estado")
	}

	// recaudado только растёт, поэтому прочитанный остаток не меньше текущего:
	// отказ здесь всегда верен, а окончательную проверку делает условный UPDATE.
	if pending := pledge.PendingCents(); amount > pending {
		s.metrics.PaymentsRejected.WithLabelValues("overpayment").Inc()
		return nil, overpayment(amount, pending)
	}

	p := &model.Payment{
		ID:          uuid.New(),
		PledgeID:    pledge.ID,
		AmountCents: amount,
		PaidAt:      paidAt,
		Note:        validation.OptionalText(in.Note),
		RecordedBy:  actor.UserID,
	}

	paid, total, err := s.repo.RecordPayment(ctx, p)
	if err != nil {
		if errors.Is(err, repository.ErrOverpayment) {
			s.metrics.PaymentsRejected.WithLabelValues("overpayment").Inc()
			return nil, apperror.OverpaymentRejected
		}
		if errors.Is(err, repository.ErrPledgeNotActive) {
			s.metrics.PaymentsRejected.WithLabelValues("not_active").Inc()
		}
		return nil, storeError(err, "pledge not found")
	}

	s.metrics.PaymentsRecorded.Inc()
	s.metrics.PaymentCents.Add(float64(amount))
	s.logger.Info("payment recorded",
		zap.String("payment_id", p.ID.String()),
		zap.String("pledge_id", pledge.ID.String()),
		zap.Int64("amount_cents", amount),
		zap.Int64("recaudado_cents", paid),
		zap.String("recorded_by", actor.UserID.String()))

	return &model.PaymentResult{
		PaymentID:    p.ID,
		PaidCents:    paid,
		PendingCents: total - paid,
	}, nil
}

func overpayment(amount, pending int64) error {
	return apperror.OverpaymentRejected.With(fmt.Sprintf("payment of %.2f exceeds the pending amount %.2f",
		validation.FromCents(amount), validation.FromCents(pending)))
}
