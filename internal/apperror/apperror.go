// Package apperror описывает доменные ошибки сервиса со стабильным видом и текстом для пользователя.
package apperror

import (
	"errors"
	"strings"
)

// Kind задаёт стабильный вид ошибки, по которому клиент принимает решение.
type Kind string

const (
	KindValidation         Kind = "ValidationError"
	KindUnauthenticated    Kind = "Unauthenticated"
	KindInvalidCredentials Kind = "InvalidCredentials"
	KindProfileNotFound    Kind = "ProfileNotFound"
	KindAccountInactive    Kind = "AccountInactive"
	KindPendingApproval    Kind = "PendingApproval"
	KindAdminRequired      Kind = "AdminRequired"
	KindUnauthorized       Kind = "Unauthorized"
	KindDuplicateMember    Kind = "DuplicateMember"
	KindNotFound           Kind = "NotFound"
	KindInvalidAmount      Kind = "InvalidAmount"
	KindOverpayment        Kind = "OverpaymentRejected"
	KindTransient          Kind = "TransientError"
	KindInternal           Kind = "InternalError"
)

// Error описывает доменную ошибку. Err хранит исходную причину и никогда не показывается клиенту.
type Error struct {
	Kind    Kind
	Message string
	Fields  []string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if len(e.Fields) > 0 {
		b.WriteString(" [")
		b.WriteString(strings.Join(e.Fields, ", "))
		b.WriteString("]")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is сравнивает ошибки по виду, что позволяет писать errors.Is(err, apperror.OverpaymentRejected).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Эталонные значения для errors.Is.
var (
	Unauthenticated     = &Error{Kind: KindUnauthenticated, Message: "authentication required"}
	InvalidCredentials  = &Error{Kind: KindInvalidCredentials, Message: "invalid email or password"}
	ProfileNotFound     = &Error{Kind: KindProfileNotFound, Message: "member profile not found"}
	AccountInactive     = &Error{Kind: KindAccountInactive, Message: "account is inactive"}
	PendingApproval     = &Error{Kind: KindPendingApproval, Message: "account is pending administrator approval"}
	AdminRequired       = &Error{Kind: KindAdminRequired, Message: "administrator role required"}
	Unauthorized        = &Error{Kind: KindUnauthorized, Message: "operation not allowed for this account"}
	DuplicateMember     = &Error{Kind: KindDuplicateMember, Message: "member already exists"}
	NotFound            = &Error{Kind: KindNotFound, Message: "not found"}
	InvalidAmount       = &Error{Kind: KindInvalidAmount, Message: "amount must be a positive number"}
	OverpaymentRejected = &Error{Kind: KindOverpayment, Message: "payment exceeds the pending amount of the pledge"}
	Transient           = &Error{Kind: KindTransient, Message: "service temporarily unavailable, try again later"}
)

// New создаёт ошибку заданного вида.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Validation создаёт ошибку валидации со списком проблемных полей.
func Validation(message string, fields ...string) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

// Wrap создаёт ошибку заданного вида с сохранением причины.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// With возвращает копию эталонной ошибки с другим текстом. Пустой текст не заменяет исходный.
func (e *Error) With(message string) *Error {
	c := *e
	if message != "" {
		c.Message = message
	}
	return &c
}

// KindOf возвращает вид доменной ошибки или KindInternal для прочих ошибок.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As извлекает доменную ошибку из цепочки.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
