package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mmeshcher/votos-system/internal/apperror"
	"github.com/mmeshcher/votos-system/internal/model"
	"github.com/mmeshcher/votos-system/internal/service"
	"github.com/mmeshcher/votos-system/internal/validation"
)

type pledgeRequest struct {
	MiembroID   string  `json:"miembro_id"`
	Proposito   string  `json:"proposito"`
	MontoTotal  float64 `json:"monto_total"`
	FechaLimite string  `json:"fecha_limite"`
}

type pledgeResponse struct {
	ID          string  `json:"id"`
	MiembroID   string  `json:"miembro_id"`
	Miembro     string  `json:"miembro,omitempty"`
	Proposito   string  `json:"proposito"`
	MontoTotal  float64 `json:"monto_total"`
	Recaudado   float64 `json:"recaudado"`
	Pendiente   float64 `json:"pendiente"`
	FechaLimite string  `json:"fecha_limite"`
	Estado      string  `json:"estado"`
	CreatedAt   string  `json:"created_at"`
}

func toPledgeResponse(p *model.Pledge) pledgeResponse {
	return pledgeResponse{
		ID:          p.ID.String(),
		MiembroID:   p.MemberID.String(),
		Miembro:     strings.TrimSpace(p.MemberFirst + " " + p.MemberLast),
		Proposito:   p.Purpose,
		MontoTotal:  validation.FromCents(p.TotalCents),
		Recaudado:   validation.FromCents(p.PaidCents),
		Pendiente:   validation.FromCents(p.PendingCents()),
		FechaLimite: p.Deadline.Format(validation.DateLayout),
		Estado:      string(p.State),
		CreatedAt:   p.CreatedAt.Format(time.RFC3339),
	}
}

type paymentResponse struct {
	ID            string  `json:"id"`
	Monto         float64 `json:"monto"`
	FechaPago     string  `json:"fecha_pago"`
	Nota          *string `json:"nota,omitempty"`
	RegistradoPor string  `json:"registrado_por"`
}

type pledgeDetailResponse struct {
	Voto    pledgeResponse    `json:"voto"`
	Miembro memberResponse    `json:"miembro"`
	Pagos   []paymentResponse `json:"pagos"`
}

type paymentRequest struct {
	Monto     float64 `json:"monto"`
	FechaPago string  `json:"fecha_pago,omitempty"`
	Nota      *string `json:"nota,omitempty"`
}

type paymentResultResponse struct {
	PagoID    string  `json:"pago_id"`
	Recaudado float64 `json:"recaudado"`
	Pendiente float64 `json:"pendiente"`
}

type dashboardResponse struct {
	TotalComprometido float64 `json:"total_comprometido"`
	TotalRecaudado    float64 `json:"total_recaudado"`
	TotalPendiente    float64 `json:"total_pendiente"`
	VotosActivos      int64   `json:"votos_activos"`
}

// CreatePledge создаёт обет для участника.
func (h *Handler) CreatePledge(w http.ResponseWriter, r *http.Request, actor model.AuthContext) {
	var req pledgeRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	var memberID uuid.UUID
	if s := strings.TrimSpace(req.MiembroID); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			h.writeError(w, r, apperror.Validation("miembro_id is not a valid identifier", "miembro_id"))
			return
		}
		memberID = id
	}

	id, err := h.service.CreatePledge(r.Context(), service.PledgeInput{
		MemberID: memberID,
		Purpose:  req.Proposito,
		Total:    req.MontoTotal,
		Deadline: req.FechaLimite,
	}, actor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, createdResponse{ID: id.String()})
}

// ListPledges возвращает обеты с фильтрами estado, miembro и q.
func (h *Handler) ListPledges(w http.ResponseWriter, r *http.Request, _ model.AuthContext) {
	q := r.URL.Query()
	f := model.PledgeFilter{
		State:  model.PledgeState(q.Get("estado")),
		Search: q.Get("q"),
	}
	if s := q.Get("miembro"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			h.writeError(w, r, apperror.Validation("miembro is not a valid identifier", "miembro"))
			return
		}
		f.MemberID = &id
	}

	pledges, err := h.service.ListPledges(r.Context(), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if len(pledges) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]pledgeResponse, 0, len(pledges))
	for i := range pledges {
		resp = append(resp, toPledgeResponse(&pledges[i]))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// GetPledge возвращает обет с владельцем и историей платежей.
func (h *Handler) GetPledge(w http.ResponseWriter, r *http.Request, _ model.AuthContext) {
	id, err := idParam(r, "pledge not found")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	d, err := h.service.GetPledge(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := pledgeDetailResponse{
		Voto:    toPledgeResponse(&d.Pledge),
		Miembro: toMemberResponse(&d.Member),
		Pagos:   make([]paymentResponse, 0, len(d.Payments)),
	}
	for _, p := range d.Payments {
		resp.Pagos = append(resp.Pagos, paymentResponse{
			ID:            p.ID.String(),
			Monto:         validation.FromCents(p.AmountCents),
			FechaPago:     p.PaidAt.Format(validation.DateLayout),
			Nota:          p.Note,
			RegistradoPor: p.RecordedBy.String(),
		})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// RecordPayment записывает платёж по обету.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request, actor model.AuthContext) {
	id, err := idParam(r, "pledge not found")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req paymentRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	in := service.PaymentInput{PledgeID: id, Amount: req.Monto, Note: req.Nota}
	if s := strings.TrimSpace(req.FechaPago); s != "" {
		paidAt, err := validation.ParseDate(s)
		if err != nil {
			h.writeError(w, r, apperror.Validation("fecha_pago must be a YYYY-MM-DD date", "fecha_pago"))
			return
		}
		in.PaidAt = &paidAt
	}

	res, err := h.service.RecordPayment(r.Context(), in, actor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, paymentResultResponse{
		PagoID:    res.PaymentID.String(),
		Recaudado: validation.FromCents(res.PaidCents),
		Pendiente: validation.FromCents(res.PendingCents),
	})
}

// CompletePledge завершает полностью собранный обет.
func (h *Handler) CompletePledge(w http.ResponseWriter, r *http.Request, actor model.AuthContext) {
	id, err := idParam(r, "pledge not found")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.service.CompletePledge(r.Context(), id, actor); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CancelPledge отменяет обет.
func (h *Handler) CancelPledge(w http.ResponseWriter, r *http.Request, actor model.AuthContext) {
	id, err := idParam(r, "pledge not found")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.service.CancelPledge(r.Context(), id, actor); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Dashboard возвращает сводку по активным обетам.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request, _ model.AuthContext) {
	stats, err := h.service.Dashboard(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, dashboardResponse{
		TotalComprometido: validation.FromCents(stats.TotalCommittedCents),
		TotalRecaudado:    validation.FromCents(stats.TotalPaidCents),
		TotalPendiente:    validation.FromCents(stats.TotalPendingCents),
		VotosActivos:      stats.ActivePledges,
	})
}
