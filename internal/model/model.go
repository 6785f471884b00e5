// Package model содержит доменные сущности сервиса учёта обетов.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Role описывает роль участника.
type Role string

const (
	RolePending Role = "pendiente"
	RoleUser    Role = "usuario"
	RoleAdmin   Role = "admin"
)

// Valid сообщает, является ли значение известной ролью.
func (r Role) Valid() bool {
	switch r {
	case RolePending, RoleUser, RoleAdmin:
		return true
	}
	return false
}

// MemberState описывает состояние учётной записи участника.
type MemberState string

const (
	MemberActive   MemberState = "activo"
	MemberInactive MemberState = "inactivo"
)

// Valid сообщает, является ли значение известным состоянием участника.
func (s MemberState) Valid() bool {
	return s == MemberActive || s == MemberInactive
}

// Gender задаёт пол участника.
type Gender string

const (
	GenderMale   Gender = "M"
	GenderFemale Gender = "F"
)

// Member представляет зарегистрированного участника организации.
type Member struct {
	ID        uuid.UUID
	FirstName string
	LastName  string
	Cedula    string
	Email     *string
	Phone     *string
	Address   *string
	BirthDate *time.Time
	Gender    *Gender
	Role      Role
	State     MemberState
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FullName возвращает имя и фамилию участника.
func (m Member) FullName() string {
	return m.FirstName + " " + m.LastName
}

// MemberFilter задаёт условия выборки списка участников.
type MemberFilter struct {
	State  MemberState
	Role   Role
	Search string
}

// PledgeState описывает статус обета.
type PledgeState string

const (
	PledgeActive    PledgeState = "activo"
	PledgeCompleted PledgeState = "completado"
	PledgeCancelled PledgeState = "cancelado"
)

// Valid сообщает, является ли значение известным статусом обета.
func (s PledgeState) Valid() bool {
	switch s {
	case PledgeActive, PledgeCompleted, PledgeCancelled:
		return true
	}
	return false
}

// Pledge описывает обет (voto) участника. Суммы хранятся в сентаво.
type Pledge struct {
	ID          uuid.UUID
	MemberID    uuid.UUID
	Purpose     string
	TotalCents  int64
	PaidCents   int64
	Deadline    time.Time
	State       PledgeState
	CreatedBy   uuid.UUID
	UpdatedBy   uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
	MemberFirst string
	MemberLast  string
}

// PendingCents возвращает ещё не собранную сумму.
func (p Pledge) PendingCents() int64 {
	return p.TotalCents - p.PaidCents
}

// PledgeFilter задаёт условия выборки списка обетов.
type PledgeFilter struct {
	State    PledgeState
	MemberID *uuid.UUID
	Search   string
}

// PledgeDetail содержит обет вместе с владельцем и историей платежей.
type PledgeDetail struct {
	Pledge   Pledge
	Member   Member
	Payments []Payment
}

// Payment описывает неизменяемую запись о платеже по обету.
type Payment struct {
	ID          uuid.UUID
	PledgeID    uuid.UUID
	AmountCents int64
	PaidAt      time.Time
	Note        *string
	RecordedBy  uuid.UUID
	CreatedAt   time.Time
}

// PaymentResult содержит состояние обета после записи платежа.
type PaymentResult struct {
	PaymentID    uuid.UUID
	PaidCents    int64
	PendingCents int64
}

// DashboardStats содержит агрегаты по активным обетам.
type DashboardStats struct {
	TotalCommittedCents int64
	TotalPaidCents      int64
	TotalPendingCents   int64
	ActivePledges       int64
}

// AuthContext содержит результат проверки доступа и передаётся в каждую операцию явно.
type AuthContext struct {
	UserID uuid.UUID
	Role   Role
	State  MemberState
}

// IsAdmin сообщает, обладает ли вызывающий правами администратора.
func (a AuthContext) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// CanOperate сообщает, может ли вызывающий выполнять изменяющие операции.
func (a AuthContext) CanOperate() bool {
	return a.State == MemberActive && (a.Role == RoleAdmin || a.Role == RoleUser)
}

// Account описывает учётную запись провайдера аутентификации.
type Account struct {
	ID           uuid.UUID
	Email        string
	PasswordHash []byte
	CreatedAt    time.Time
}
