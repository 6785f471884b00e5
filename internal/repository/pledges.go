package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/votos-system/internal/model"
)

const pledgeColumns = `v.id, v.miembro_id, v.proposito, v.monto_total, v.recaudado, v.fecha_limite,
	v.estado, v.creado_por, v.modificado_por, v.created_at, v.updated_at, m.nombres, m.apellidos`

func scanPledge(row rowScanner) (*model.Pledge, error) {
	var (
		p     model.Pledge
		state string
	)
	err := row.Scan(&p.ID, &p.MemberID, &p.Purpose, &p.TotalCents, &p.PaidCents, &p.Deadline,
		&state, &p.CreatedBy, &p.UpdatedBy, &p.CreatedAt, &p.UpdatedAt, &p.MemberFirst, &p.MemberLast)
	if err != nil {
		return nil, err
	}
	p.State = model.PledgeState(state)
	return &p, nil
}

// CreatePledge сохраняет новый обет с нулевой собранной суммой.
func (r *PostgresRepository) CreatePledge(ctx context.Context, p *model.Pledge) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO votos (id, miembro_id, proposito, monto_total, recaudado, fecha_limite, estado,
			creado_por, modificado_por)
		 VALUES ($1, $2, $3, $4, 0, $5, $6, $7, $7)
		 RETURNING recaudado, created_at, updated_at`,
		p.ID, p.MemberID, p.Purpose, p.TotalCents, dateOnly(p.Deadline), string(p.State), p.CreatedBy,
	).Scan(&p.PaidCents, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create pledge: %w", err)
	}
	p.UpdatedBy = p.CreatedBy
	return nil
}

// GetPledge возвращает обет вместе с именем владельца.
func (r *PostgresRepository) GetPledge(ctx context.Context, id uuid.UUID) (*model.Pledge, error) {
	p, err := scanPledge(r.pool.QueryRow(ctx,
		`SELECT `+pledgeColumns+`
		 FROM votos v JOIN miembros m ON m.id = v.miembro_id
		 WHERE v.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get pledge: %w", err)
	}
	return p, nil
}

// ListPledges возвращает обеты, отсортированные по сроку.
func (r *PostgresRepository) ListPledges(ctx context.Context, f model.PledgeFilter) ([]model.Pledge, error) {
	query := `SELECT ` + pledgeColumns + `
		FROM votos v JOIN miembros m ON m.id = v.miembro_id
		WHERE TRUE`
	var args []any

	if f.State != "" {
		args = append(args, string(f.State))
		query += fmt.Sprintf(" AND v.estado = $%d", len(args))
	}
	if f.MemberID != nil {
		args = append(args, *f.MemberID)
		query += fmt.Sprintf(" AND v.miembro_id = $%d", len(args))
	}
	if f.Search != "" {
		args = append(args, "%"+escapeLike(f.Search)+"%")
		query += fmt.Sprintf(` AND (v.proposito ILIKE $%[1]d OR m.nombres ILIKE $%[1]d
			OR m.apellidos ILIKE $%[1]d)`, len(args))
	}
	query += " ORDER BY v.fecha_limite, v.created_at"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select pledges: %w", err)
	}
	defer rows.Close()

	var res []model.Pledge
	for rows.Next() {
		p, err := scanPledge(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pledge: %w", err)
		}
		res = append(res, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// TransitionPledge переводит активный обет в состояние to.
// Переход в completado возможен только при recaudado = monto_total.
func (r *PostgresRepository) TransitionPledge(ctx context.Context, id uuid.UUID, to model.PledgeState, actor uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE votos
		 SET estado = $2, modificado_por = $3, updated_at = now()
		 WHERE id = $1 AND estado = 'activo' AND ($2 <> 'completado' OR recaudado = monto_total)`,
		id, string(to), actor,
	)
	if err != nil {
		return fmt.Errorf("update pledge state: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	p, err := r.GetPledge(ctx, id)
	if err != nil {
		return err
	}
	if p.State != model.PledgeActive {
		return ErrPledgeNotActive
	}
	return ErrPledgeNotFullyPaid
}

// GetDashboardStats возвращает агрегаты по активным обетам в сентаво.
func (r *PostgresRepository) GetDashboardStats(ctx context.Context) (*model.DashboardStats, error) {
	var s model.DashboardStats
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(monto_total), 0)::bigint, COALESCE(SUM(recaudado), 0)::bigint, COUNT(*)
		 FROM votos
		 WHERE estado = 'activo'`,
	).Scan(&s.TotalCommittedCents, &s.TotalPaidCents, &s.ActivePledges)
	if err != nil {
		return nil, fmt.Errorf("dashboard stats: %w", err)
	}
	s.TotalPendingCents = s.TotalCommittedCents - s.TotalPaidCents
	return &s, nil
}
