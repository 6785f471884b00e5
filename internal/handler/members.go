package handler

import (
	"net/http"
	"time"

	"github.com/mmeshcher/votos-system/internal/model"
	"github.com/mmeshcher/votos-system/internal/service"
	"github.com/mmeshcher/votos-system/internal/validation"
)

type memberRequest struct {
	Nombres         string  `json:"nombres"`
	Apellidos       string  `json:"apellidos"`
	Cedula          string  `json:"cedula"`
	Email           *string `json:"email,omitempty"`
	Telefono        *string `json:"telefono,omitempty"`
	Direccion       *string `json:"direccion,omitempty"`
	FechaNacimiento string  `json:"fecha_nacimiento,omitempty"`
	Genero          string  `json:"genero,omitempty"`
}

func (m memberRequest) input() service.MemberInput {
	return service.MemberInput{
		FirstName: m.Nombres,
		LastName:  m.Apellidos,
		Cedula:    m.Cedula,
		Email:     m.Email,
		Phone:     m.Telefono,
		Address:   m.Direccion,
		BirthDate: m.FechaNacimiento,
		Gender:    m.Genero,
	}
}

type memberResponse struct {
	ID              string  `json:"id"`
	Nombres         string  `json:"nombres"`
	Apellidos       string  `json:"apellidos"`
	Cedula          string  `json:"cedula"`
	Email           *string `json:"email,omitempty"`
	Telefono        *string `json:"telefono,omitempty"`
	Direccion       *string `json:"direccion,omitempty"`
	FechaNacimiento *string `json:"fecha_nacimiento,omitempty"`
	Genero          *string `json:"genero,omitempty"`
	Rol             string  `json:"rol"`
	Estado          string  `json:"estado"`
	CreatedAt       string  `json:"created_at"`
}

func toMemberResponse(m *model.Member) memberResponse {
	resp := memberResponse{
		ID:        m.ID.String(),
		Nombres:   m.FirstName,
		Apellidos: m.LastName,
		Cedula:    m.Cedula,
		Email:     m.Email,
		Telefono:  m.Phone,
		Direccion: m.Address,
		Rol:       string(m.Role),
		Estado:    string(m.State),
		CreatedAt: m.CreatedAt.Format(time.RFC3339),
	}
	if m.BirthDate != nil {
		d := m.BirthDate.Format(validation.DateLayout)
		resp.FechaNacimiento = &d
	}
	if m.Gender != nil {
		g := string(*m.Gender)
		resp.Genero = &g
	}
	return resp
}

type createdResponse struct {
	ID string `json:"id"`
}

// CreateMember добавляет участника в реестр от имени текущего пользователя.
func (h *Handler) CreateMember(w http.ResponseWriter, r *http.Request, actor model.AuthContext) {
	var req memberRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	id, err := h.service.CreateMember(r.Context(), req.input(), actor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, createdResponse{ID: id.String()})
}

// ListMembers возвращает участников с фильтрами estado, rol и q.
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request, _ model.AuthContext) {
	q := r.URL.Query()
	members, err := h.service.ListMembers(r.Context(), model.MemberFilter{
		State:  model.MemberState(q.Get("estado")),
		Role:   model.Role(q.Get("rol")),
		Search: q.Get("q"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if len(members) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]memberResponse, 0, len(members))
	for i := range members {
		resp = append(resp, toMemberResponse(&members[i]))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// ApproveMember одобряет участника или снова активирует отключённого.
func (h *Handler) ApproveMember(w http.ResponseWriter, r *http.Request, actor model.AuthContext) {
	id, err := idParam(r, "member not found")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if _, err := h.service.ApproveMember(r.Context(), id, actor); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RejectMember отключает участника.
func (h *Handler) RejectMember(w http.ResponseWriter, r *http.Request, actor model.AuthContext) {
	id, err := idParam(r, "member not found")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if _, err := h.service.RejectMember(r.Context(), id, actor); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
