// Package middleware содержит HTTP middleware сервиса учёта обетов.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"

	"github.com/mmeshcher/votos-system/internal/apperror"
)

type contextKey string

const subjectKey contextKey = "subject"

const (
	sessionCookieName = "votos_session"
	defaultSessionTTL = 24 * time.Hour
)

type session struct {
	Subject string `json:"sub"`
}

// SessionManager выдаёт и проверяет подписанный cookie сессии с идентификатором участника.
type SessionManager struct {
	codec  *securecookie.SecureCookie
	ttl    time.Duration
	secure bool
}

// NewSessionManager создаёт менеджер сессий. Пустой hashKey заменяется случайным ключом,
// и тогда сессии не переживают перезапуск. blockKey включает шифрование и должен
// иметь длину 16, 24 или 32 байта.
func NewSessionManager(hashKey, blockKey string, ttl time.Duration, secure bool) (*SessionManager, error) {
	hk := []byte(hashKey)
	if len(hk) == 0 {
		hk = securecookie.GenerateRandomKey(64)
		if hk == nil {
			return nil, errors.New("generate session hash key")
		}
	}

	var bk []byte
	if blockKey != "" {
		switch len(blockKey) {
		case 16, 24, 32:
			bk = []byte(blockKey)
		default:
			return nil, fmt.Errorf("session block key must be 16, 24 or 32 bytes, got %d", len(blockKey))
		}
	}

	if ttl <= 0 {
		ttl = defaultSessionTTL
	}

	codec := securecookie.New(hk, bk)
	codec.MaxAge(int(ttl.Seconds()))
	codec.SetSerializer(securecookie.JSONEncoder{})

	return &SessionManager{
		codec:  codec,
		ttl:    ttl,
		secure: secure,
	}, nil
}

// Middleware проверяет cookie сессии и добавляет идентификатор участника в контекст запроса.
func (s *SessionManager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := s.subject(r)
		if !ok {
			writeUnauthenticated(w)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), id)))
	})
}

// SetSession устанавливает cookie сессии для указанного участника.
func (s *SessionManager) SetSession(w http.ResponseWriter, id uuid.UUID) error {
	value, err := s.codec.Encode(sessionCookieName, session{Subject: id.String()})
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    value,
		Path:     "/",
		Expires:  time.Now().Add(s.ttl),
		MaxAge:   int(s.ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// ClearSession удаляет cookie сессии.
func (s *SessionManager) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *SessionManager) subject(r *http.Request) (uuid.UUID, bool) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return uuid.Nil, false
	}

	var sess session
	if err := s.codec.Decode(sessionCookieName, cookie.Value, &sess); err != nil {
		return uuid.Nil, false
	}

	id, err := uuid.Parse(sess.Subject)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// WithSubject возвращает контекст с идентификатором участника.
func WithSubject(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, subjectKey, id)
}

// SubjectFromContext извлекает идентификатор участника из контекста запроса.
func SubjectFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(subjectKey).(uuid.UUID)
	return id, ok
}

func writeUnauthenticated(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   string(apperror.KindUnauthenticated),
		"message": apperror.Unauthenticated.Message,
	})
}
