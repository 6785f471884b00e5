package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/votos-system/internal/model"
)

const memberColumns = `id, nombres, apellidos, cedula, email, telefono, direccion,
	fecha_nacimiento, genero, rol, estado, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMember(row rowScanner) (*model.Member, error) {
	var (
		m      model.Member
		gender *string
		role   string
		state  string
	)
	err := row.Scan(&m.ID, &m.FirstName, &m.LastName, &m.Cedula, &m.Email, &m.Phone, &m.Address,
		&m.BirthDate, &gender, &role, &state, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if gender != nil {
		g := model.Gender(*gender)
		m.Gender = &g
	}
	m.Role = model.Role(role)
	m.State = model.MemberState(state)
	return &m, nil
}

// CreateMember сохраняет нового участника. Уникальность cédula и почты обеспечивается индексами.
func (r *PostgresRepository) CreateMember(ctx context.Context, m *model.Member) error {
	var gender *string
	if m.Gender != nil {
		g := string(*m.Gender)
		gender = &g
	}

	err := r.pool.QueryRow(ctx,
		`INSERT INTO miembros (id, nombres, apellidos, cedula, email, telefono, direccion,
			fecha_nacimiento, genero, rol, estado)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING created_at, updated_at`,
		m.ID, m.FirstName, m.LastName, m.Cedula, m.Email, m.Phone, m.Address,
		m.BirthDate, gender, string(m.Role), string(m.State),
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			switch constraint {
			case "miembros_email_key":
				return fmt.Errorf("%w: %s", ErrEmailExists, derefString(m.Email))
			case "miembros_cedula_key":
				return fmt.Errorf("%w: %s", ErrCedulaExists, m.Cedula)
			}
		}
		return fmt.Errorf("create member: %w", err)
	}
	return nil
}

// GetMember возвращает участника по идентификатору.
func (r *PostgresRepository) GetMember(ctx context.Context, id uuid.UUID) (*model.Member, error) {
	m, err := scanMember(r.pool.QueryRow(ctx,
		`SELECT `+memberColumns+` FROM miembros WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

// ListMembers возвращает участников, отсортированных по фамилии и имени.
func (r *PostgresRepository) ListMembers(ctx context.Context, f model.MemberFilter) ([]model.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM miembros WHERE TRUE`
	var args []any

	if f.State != "" {
		args = append(args, string(f.State))
		query += fmt.Sprintf(" AND estado = $%d", len(args))
	}
	if f.Role != "" {
		args = append(args, string(f.Role))
		query += fmt.Sprintf(" AND rol = $%d", len(args))
	}
	if f.Search != "" {
		args = append(args, "%"+escapeLike(f.Search)+"%")
		n := len(args)
		query += fmt.Sprintf(` AND (nombres ILIKE $%[1]d OR apellidos ILIKE $%[1]d
			OR cedula ILIKE $%[1]d OR email ILIKE $%[1]d)`, n)
	}
	query += " ORDER BY apellidos, nombres"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select members: %w", err)
	}
	defer rows.Close()

	var res []model.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		res = append(res, *m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// ApproveMember переводит участника из pendiente в usuario и активирует его. Роль admin сохраняется.
func (r *PostgresRepository) ApproveMember(ctx context.Context, id uuid.UUID) (*model.Member, error) {
	return r.updateMember(ctx,
		`UPDATE miembros
		 SET rol = CASE WHEN rol = 'pendiente' THEN 'usuario' ELSE rol END,
		     estado = 'activo',
		     updated_at = now()
		 WHERE id = $1
		 RETURNING `+memberColumns, id)
}

// RejectMember отключает участника. Запись не удаляется.
func (r *PostgresRepository) RejectMember(ctx context.Context, id uuid.UUID) (*model.Member, error) {
	return r.updateMember(ctx,
		`UPDATE miembros
		 SET estado = 'inactivo', updated_at = now()
		 WHERE id = $1
		 RETURNING `+memberColumns, id)
}

// PromoteAdmin назначает участника администратором.
func (r *PostgresRepository) PromoteAdmin(ctx context.Context, id uuid.UUID) (*model.Member, error) {
	return r.updateMember(ctx,
		`UPDATE miembros
		 SET rol = 'admin', estado = 'activo', updated_at = now()
		 WHERE id = $1
		 RETURNING `+memberColumns, id)
}

func (r *PostgresRepository) updateMember(ctx context.Context, query string, id uuid.UUID) (*model.Member, error) {
	m, err := scanMember(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update member: %w", err)
	}
	return m, nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
