package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/janabsyco4-wq/hotelogix-management-system-sub000/internal/model"
)

// CreatePaymentRecord фиксирует захват средств. Вставка идемпотентна по
// intent_id: повторное подтверждение того же интента не создаёт дубликата.
func (r *PostgresRepository) CreatePaymentRecord(ctx context.Context, rec *model.PaymentRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO payment_records (intent_id, amount_cents, currency, captured_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (intent_id) DO NOTHING`,
		rec.IntentID, rec.AmountCents, rec.Currency, rec.CapturedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment record: %w", err)
	}
	return nil
}

// GetPaymentRecord возвращает запись о платеже по идентификатору интента.
func (r *PostgresRepository) GetPaymentRecord(ctx context.Context, intentID string) (*model.PaymentRecord, error) {
	var rec model.PaymentRecord
	err := r.pool.QueryRow(ctx,
		`SELECT intent_id, amount_cents, currency, captured_at FROM payment_records WHERE intent_id = $1`,
		intentID,
	).Scan(&rec.IntentID, &rec.AmountCents, &rec.Currency, &rec.CapturedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentRecordNotFound
		}
		return nil, fmt.Errorf("get payment record: %w", err)
	}
	return &rec, nil
}

// BeginRefund резервирует возврат по интенту до обращения к шлюзу. Запись
// о платеже блокируется FOR UPDATE, и сумма нового возврата вместе со всеми
// прежними (включая незавершённые) сверяется с захваченной: превышение —
// ErrRefundExceedsCaptured. Повтор с тем же request_id возвращает
// существующую запись, второй результат — false.
func (r *PostgresRepository) BeginRefund(ctx context.Context, intentID, requestID string, amountCents int64, reason string) (*model.Refund, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var captured int64
	err = tx.QueryRow(ctx,
		`SELECT amount_cents FROM payment_records WHERE intent_id = $1 FOR UPDATE`,
		intentID,
	).Scan(&captured)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, ErrPaymentRecordNotFound
		}
		return nil, false, fmt.Errorf("lock payment record: %w", err)
	}

	existing, err := scanRefund(tx.QueryRow(ctx,
		refundSelect+` WHERE intent_id = $1 AND request_id = $2`,
		intentID, requestID,
	))
	if err == nil {
		if commitErr := tx.Commit(ctx); commitErr != nil {
			return nil, false, fmt.Errorf("commit tx: %w", commitErr)
		}
		return existing, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("select existing refund: %w", err)
	}

	var refundedTotal int64
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM refunds WHERE intent_id = $1`,
		intentID,
	).Scan(&refundedTotal)
	if err != nil {
		return nil, false, fmt.Errorf("sum refunds: %w", err)
	}

	if refundedTotal+amountCents > captured {
		return nil, false, ErrRefundExceedsCaptured
	}

	ref := &model.Refund{
		IntentID:    intentID,
		RequestID:   requestID,
		AmountCents: amountCents,
		Reason:      reason,
		Status:      model.RefundStatusPending,
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO refunds (intent_id, request_id, amount_cents, reason, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		intentID, requestID, amountCents, reason, ref.Status,
	).Scan(&ref.ID, &ref.CreatedAt)
	if err != nil {
		return nil, false, fmt.Errorf("insert refund: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("commit tx: %w", err)
	}

	return ref, true, nil
}

// MarkRefundProcessed фиксирует успешный ответ шлюза по возврату.
func (r *PostgresRepository) MarkRefundProcessed(ctx context.Context, id int64, gatewayRefundID string, processedAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE refunds SET status = $2, gateway_refund_id = $3, processed_at = $4 WHERE id = $1`,
		id, model.RefundStatusProcessed, gatewayRefundID, processedAt,
	)
	if err != nil {
		return fmt.Errorf("mark refund processed: %w", err)
	}
	return nil
}

// DeleteRefund удаляет зарезервированный возврат после отказа шлюза, чтобы
// сумма не продолжала учитываться в лимите возвратов.
func (r *PostgresRepository) DeleteRefund(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM refunds WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete refund: %w", err)
	}
	return nil
}

// ListRefundsByIntent возвращает возвраты по интенту в порядке создания.
func (r *PostgresRepository) ListRefundsByIntent(ctx context.Context, intentID string) ([]model.Refund, error) {
	rows, err := r.pool.Query(ctx,
		refundSelect+` WHERE intent_id = $1 ORDER BY created_at`,
		intentID,
	)
	if err != nil {
		return nil, fmt.Errorf("select refunds: %w", err)
	}
	defer rows.Close()

	var res []model.Refund
	for rows.Next() {
		ref, err := scanRefund(rows)
		if err != nil {
			return nil, fmt.Errorf("scan refund: %w", err)
		}
		res = append(res, *ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

const refundSelect = `SELECT id, intent_id, request_id, amount_cents, reason, status,
	gateway_refund_id, created_at, processed_at FROM refunds`

func scanRefund(row pgx.Row) (*model.Refund, error) {
	var ref model.Refund
	err := row.Scan(
		&ref.ID, &ref.IntentID, &ref.RequestID, &ref.AmountCents, &ref.Reason,
		&ref.Status, &ref.GatewayRefundID, &ref.CreatedAt, &ref.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ref, nil
}
