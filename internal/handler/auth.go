package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/votos-system/internal/model"
	"github.com/mmeshcher/votos-system/internal/service"
)

type signUpRequest struct {
	memberRequest
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	ID     string `json:"id"`
	Rol    string `json:"rol"`
	Estado string `json:"estado"`
}

// SignUp регистрирует участника с учётной записью. Участник ждёт одобрения
// администратора, но уже может видеть свой профиль.
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	id, err := h.service.SignUp(r.Context(), service.SignUpInput{
		MemberInput: req.input(),
		Password:    req.Password,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.sessions.SetSession(w, id); err != nil {
		h.logger.Error("set session after signup", zap.Error(err), zap.String("member_id", id.String()))
	}

	h.writeJSON(w, http.StatusCreated, sessionResponse{
		ID:     id.String(),
		Rol:    string(model.RolePending),
		Estado: string(model.MemberActive),
	})
}

// Login выполняет аутентификацию и устанавливает cookie сессии.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	ac, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.sessions.SetSession(w, ac.UserID); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, sessionResponse{
		ID:     ac.UserID.String(),
		Rol:    string(ac.Role),
		Estado: string(ac.State),
	})
}

// Logout удаляет cookie сессии.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.ClearSession(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me возвращает профиль текущего участника.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request, actor model.AuthContext) {
	m, err := h.service.GetMember(r.Context(), actor.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toMemberResponse(m))
}
