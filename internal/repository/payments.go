package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/votos-system/internal/model"
)

// RecordPayment добавляет платёж и увеличивает собранную сумму обета в одной транзакции.
// Проверка остатка выполняется условным UPDATE, поэтому параллельные платежи по одному обету
// сериализуются блокировкой строки и не могут вместе превысить monto_total.
// Повторный вызов с тем же p.ID не создаёт второй платёж: возвращается состояние обета,
// поэтому повтор после обрыва соединения на COMMIT безопасен.
// Возвращает собранную и общую сумму обета после платежа.
func (r *PostgresRepository) RecordPayment(ctx context.Context, p *model.Payment) (int64, int64, error) {
	var paid, total int64

	err := r.withRetry(ctx, func() error {
		found, err := r.recordedPayment(ctx, p, &paid, &total)
		if err != nil || found {
			return err
		}

		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		err = tx.QueryRow(ctx,
			`UPDATE votos
			 SET recaudado = recaudado + $2, modificado_por = $3, updated_at = now()
			 WHERE id = $1 AND estado = 'activo' AND recaudado + $2 <= monto_total
			 RETURNING recaudado, monto_total`,
			p.PledgeID, p.AmountCents, p.RecordedBy,
		).Scan(&paid, &total)
		if errors.Is(err, pgx.ErrNoRows) {
			return rejectReason(ctx, tx, p.PledgeID)
		}
		if err != nil {
			return fmt.Errorf("increment recaudado: %w", err)
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO pagos (id, voto_id, monto, fecha_pago, nota, registrado_por)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING created_at`,
			p.ID, p.PledgeID, p.AmountCents, p.PaidAt, p.Note, p.RecordedBy,
		).Scan(&p.CreatedAt)
		if constraint, ok := uniqueViolation(err); ok && constraint == "pagos_pkey" {
			// Параллельный вызов с тем же id успел записать платёж, эта транзакция откатывается.
			_ = tx.Rollback(ctx)
			found, err := r.recordedPayment(ctx, p, &paid, &total)
			if err == nil && !found {
				err = fmt.Errorf("payment %s conflicts but is not visible", p.ID)
			}
			return err
		}
		if err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	return paid, total, nil
}

// recordedPayment проверяет, сохранён ли уже платёж p.ID, и если да, читает текущие суммы обета.
func (r *PostgresRepository) recordedPayment(ctx context.Context, p *model.Payment, paid, total *int64) (bool, error) {
	err := r.pool.QueryRow(ctx,
		`SELECT v.recaudado, v.monto_total, pg.created_at
		 FROM pagos pg JOIN votos v ON v.id = pg.voto_id
		 WHERE pg.id = $1`,
		p.ID,
	).Scan(paid, total, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("select recorded payment: %w", err)
	}
	return true, nil
}

// rejectReason определяет, почему условный UPDATE не изменил ни одной строки.
func rejectReason(ctx context.Context, tx pgx.Tx, pledgeID uuid.UUID) error {
	var state string
	err := tx.QueryRow(ctx, `SELECT estado FROM votos WHERE id = $1`, pledgeID).Scan(&state)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("select pledge state: %w", err)
	}
	if model.PledgeState(state) != model.PledgeActive {
		return ErrPledgeNotActive
	}
	return ErrOverpayment
}

// GetPaymentsByPledge возвращает платежи обета, начиная с последнего.
func (r *PostgresRepository) GetPaymentsByPledge(ctx context.Context, pledgeID uuid.UUID) ([]model.Payment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, voto_id, monto, fecha_pago, nota, registrado_por, created_at
		 FROM pagos
		 WHERE voto_id = $1
		 ORDER BY fecha_pago DESC, created_at DESC`,
		pledgeID,
	)
	if err != nil {
		return nil, fmt.Errorf("select payments: %w", err)
	}
	defer rows.Close()

	var res []model.Payment
	for rows.Next() {
		var p model.Payment
		if err := rows.Scan(&p.ID, &p.PledgeID, &p.AmountCents, &p.PaidAt, &p.Note, &p.RecordedBy, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		res = append(res, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
