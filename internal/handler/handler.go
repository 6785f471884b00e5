// Package handler содержит HTTP-обработчики API сервиса учёта обетов.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/votos-system/internal/apperror"
	"github.com/mmeshcher/votos-system/internal/metrics"
	"github.com/mmeshcher/votos-system/internal/middleware"
	"github.com/mmeshcher/votos-system/internal/model"
	"github.com/mmeshcher/votos-system/internal/service"
)

const maxBodyBytes = 1 << 20

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Authorize(ctx context.Context, subject uuid.UUID, req service.Requirement) (model.AuthContext, error)
	Login(ctx context.Context, email, password string) (model.AuthContext, error)
	SignUp(ctx context.Context, in service.SignUpInput) (uuid.UUID, error)

	CreateMember(ctx context.Context, in service.MemberInput, actor model.AuthContext) (uuid.UUID, error)
	GetMember(ctx context.Context, id uuid.UUID) (*model.Member, error)
	ListMembers(ctx context.Context, f model.MemberFilter) ([]model.Member, error)
	ApproveMember(ctx context.Context, target uuid.UUID, actor model.AuthContext) (*model.Member, error)
	RejectMember(ctx context.Context, target uuid.UUID, actor model.AuthContext) (*model.Member, error)

	CreatePledge(ctx context.Context, in service.PledgeInput, actor model.AuthContext) (uuid.UUID, error)
	GetPledge(ctx context.Context, id uuid.UUID) (*model.PledgeDetail, error)
	ListPledges(ctx context.Context, f model.PledgeFilter) ([]model.Pledge, error)
	CompletePledge(ctx context.Context, id uuid.UUID, actor model.AuthContext) error
	CancelPledge(ctx context.Context, id uuid.UUID, actor model.AuthContext) error
	Dashboard(ctx context.Context) (*model.DashboardStats, error)

	RecordPayment(ctx context.Context, in service.PaymentInput, actor model.AuthContext) (*model.PaymentResult, error)
}

// Handler реализует HTTP-обработчики API.
type Handler struct {
	service  Service
	logger   *zap.Logger
	sessions *middleware.SessionManager
	metrics  *metrics.Metrics
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, sessions *middleware.SessionManager, m *metrics.Metrics) *Handler {
	return &Handler{
		service:  s,
		logger:   logger,
		sessions: sessions,
		metrics:  m,
	}
}

type gatedFunc func(w http.ResponseWriter, r *http.Request, actor model.AuthContext)

// gate пропускает запрос дальше, только если участник из сессии удовлетворяет требованию.
// Роль и статус читаются заново на каждый запрос.
func (h *Handler) gate(req service.Requirement, next gatedFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject, _ := middleware.SubjectFromContext(r.Context())
		actor, err := h.service.Authorize(r.Context(), subject, req)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		next(w, r, actor)
	}
}

type errorResponse struct {
	Error   apperror.Kind `json:"error"`
	Message string        `json:"message"`
	Fields  []string      `json:"fields,omitempty"`
}

func statusFor(kind apperror.Kind) int {
	switch kind {
	case apperror.KindValidation:
		return http.StatusBadRequest
	case apperror.KindInvalidAmount:
		return http.StatusUnprocessableEntity
	case apperror.KindUnauthenticated, apperror.KindInvalidCredentials:
		return http.StatusUnauthorized
	case apperror.KindAccountInactive, apperror.KindPendingApproval, apperror.KindAdminRequired,
		apperror.KindProfileNotFound, apperror.KindUnauthorized:
		return http.StatusForbidden
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindDuplicateMember, apperror.KindOverpayment:
		return http.StatusConflict
	case apperror.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError отдаёт клиенту вид и текст доменной ошибки. Причина сбоя хранилища
// пишется только в журнал.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := errorResponse{Error: apperror.KindInternal, Message: "internal error"}
	if e, ok := apperror.As(err); ok {
		resp = errorResponse{Error: e.Kind, Message: e.Message, Fields: e.Fields}
	}

	status := statusFor(resp.Error)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("kind", string(resp.Error)),
			zap.Error(err))
	}

	h.writeJSON(w, status, resp)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}

// decode читает JSON-тело запроса. Ошибка уже приведена к ValidationError.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	defer r.Body.Close()

	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperror.Validation("request body is empty")
		}
		return apperror.Validation("request body is not valid JSON")
	}
	return nil
}

// idParam извлекает идентификатор из пути. Некорректный идентификатор не может
// указывать на существующую запись.
func idParam(r *http.Request, notFound string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, apperror.NotFound.With(notFound)
	}
	return id, nil
}
