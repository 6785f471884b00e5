// Package service реализует бизнес-логику учёта участников, обетов и платежей.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/votos-system/internal/apperror"
	"github.com/mmeshcher/votos-system/internal/metrics"
	"github.com/mmeshcher/votos-system/internal/model"
	"github.com/mmeshcher/votos-system/internal/repository"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	CreateMember(ctx context.Context, m *model.Member) error
	GetMember(ctx context.Context, id uuid.UUID) (*model.Member, error)
	ListMembers(ctx context.Context, f model.MemberFilter) ([]model.Member, error)
	ApproveMember(ctx context.Context, id uuid.UUID) (*model.Member, error)
	RejectMember(ctx context.Context, id uuid.UUID) (*model.Member, error)
	PromoteAdmin(ctx context.Context, id uuid.UUID) (*model.Member, error)

	CreatePledge(ctx context.Context, p *model.Pledge) error
	GetPledge(ctx context.Context, id uuid.UUID) (*model.Pledge, error)
	ListPledges(ctx context.Context, f model.PledgeFilter) ([]model.Pledge, error)
	TransitionPledge(ctx context.Context, id uuid.UUID, to model.PledgeState, actor uuid.UUID) error
	GetDashboardStats(ctx context.Context) (*model.DashboardStats, error)

	RecordPayment(ctx context.Context, p *model.Payment) (int64, int64, error)
	GetPaymentsByPledge(ctx context.Context, pledgeID uuid.UUID) ([]model.Payment, error)
}

// AuthProvider описывает внешний провайдер аутентификации.
type AuthProvider interface {
	CreateAccount(ctx context.Context, email, password string) (uuid.UUID, error)
	DeleteAccount(ctx context.Context, id uuid.UUID) error
	Authenticate(ctx context.Context, email, password string) (uuid.UUID, error)
}

// Service содержит бизнес-логику сервиса.
type Service struct {
	repo    Repository
	auth    AuthProvider
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	// loc задаёт часовой пояс, в котором определяется текущая календарная дата.
	loc *time.Location
}

// NewService создаёт сервис с указанным репозиторием, провайдером аутентификации, логгером и метриками.
func NewService(repo Repository, auth AuthProvider, logger *zap.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.New()
	}
	return &Service{
		repo:    repo,
		auth:    auth,
		logger:  logger,
		metrics: m,
		now:     time.Now,
		loc:     time.UTC,
	}
}

// SetLocation задаёт часовой пояс, в котором определяется «сегодня» для дат платежей.
func (s *Service) SetLocation(loc *time.Location) {
	if loc != nil {
		s.loc = loc
	}
}

// afterToday сообщает, приходится ли календарная дата t на день позже сегодняшнего.
// Дата t берётся в её собственном часовом поясе, сегодняшний день определяется в s.loc.
func (s *Service) afterToday(t time.Time) bool {
	y, m, d := t.Date()
	ty, tm, td := s.now().In(s.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).After(time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC))
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// storeError переводит ошибки хранилища в доменные. Текст ошибок драйвера наружу не попадает.
func storeError(err error, notFound string) error {
	if err == nil {
		return nil
	}
	if _, ok := apperror.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperror.NotFound.With(notFound)
	case errors.Is(err, repository.ErrCedulaExists):
		return apperror.DuplicateMember.With("a member with this cedula already exists")
	case errors.Is(err, repository.ErrEmailExists):
		return apperror.DuplicateMember.With("a member with this email already exists")
	case errors.Is(err, repository.ErrPledgeNotActive):
		return apperror.Validation("pledge is not active", "estado")
	case errors.Is(err, repository.ErrPledgeNotFullyPaid):
		return apperror.Validation("pledge can be completed only when fully collected", "recaudado")
	case errors.Is(err, repository.ErrOverpayment):
		return apperror.OverpaymentRejected
	}
	return apperror.Wrap(apperror.KindTransient, apperror.Transient.Message, err)
}
