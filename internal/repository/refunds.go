package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/janabsyco4-wq/hotelogix-management-system-sub000/internal/model"
)

const refundRequestSelect = `SELECT id, booking_id, request_uuid, reason, refund_percentage,
	refund_amount_cents, tier_label, decision, decided_by, requested_at, decided_at
	FROM refund_requests`

func scanRefundRequest(row pgx.Row) (*model.RefundRequest, error) {
	var rr model.RefundRequest
	err := row.Scan(
		&rr.ID, &rr.BookingID, &rr.RequestUUID, &rr.Reason, &rr.RefundPercentage,
		&rr.RefundAmount, &rr.TierLabel, &rr.Decision, &rr.DecidedBy,
		&rr.RequestedAt, &rr.DecidedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rr, nil
}

// CreateRefundRequest сохраняет заявку на возврат и заполняет её ID и время создания.
func (r *PostgresRepository) CreateRefundRequest(ctx context.Context, rr *model.RefundRequest) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO refund_requests (booking_id, request_uuid, reason, refund_percentage,
		     refund_amount_cents, tier_label, decision)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, requested_at`,
		rr.BookingID, rr.RequestUUID, rr.Reason, rr.RefundPercentage,
		rr.RefundAmount, rr.TierLabel, model.DecisionPending,
	).Scan(&rr.ID, &rr.RequestedAt)
	if err != nil {
		return fmt.Errorf("insert refund request: %w", err)
	}
	rr.Decision = model.DecisionPending
	return nil
}

// GetPendingRefundRequest возвращает нерешённую заявку по бронированию.
func (r *PostgresRepository) GetPendingRefundRequest(ctx context.Context, bookingID int64) (*model.RefundRequest, error) {
	rr, err := scanRefundRequest(r.pool.QueryRow(ctx,
		refundRequestSelect+` WHERE booking_id = $1 AND decision = $2 ORDER BY requested_at DESC LIMIT 1`,
		bookingID, model.DecisionPending,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRefundRequestNotFound
		}
		return nil, fmt.Errorf("get pending refund request: %w", err)
	}
	return rr, nil
}

// DecideRefundRequest фиксирует решение администратора по заявке. Переход
// условный: решить можно только нерешённую заявку, повторное решение —
// ErrStatusConflict.
func (r *PostgresRepository) DecideRefundRequest(ctx context.Context, id int64, decision string, decidedBy int64, decidedAt time.Time) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE refund_requests SET decision = $2, decided_by = $3, decided_at = $4
		 WHERE id = $1 AND decision = $5`,
		id, decision, decidedBy, decidedAt, model.DecisionPending,
	)
	if err != nil {
		return fmt.Errorf("decide refund request: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

// ReopenRefundRequest возвращает одобренную заявку в pending после сбоя
// возврата, чтобы решение можно было повторить.
func (r *PostgresRepository) ReopenRefundRequest(ctx context.Context, id int64) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE refund_requests SET decision = $2, decided_by = NULL, decided_at = NULL
		 WHERE id = $1 AND decision = $3`,
		id, model.DecisionPending, model.DecisionApproved,
	)
	if err != nil {
		return fmt.Errorf("reopen refund request: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

// ListRefundRequests возвращает заявки на возврат, новые первыми. Пустое
// решение означает отсутствие фильтра.
func (r *PostgresRepository) ListRefundRequests(ctx context.Context, decision string) ([]model.RefundRequest, error) {
	var rows pgx.Rows
	var err error
	if decision == "" {
		rows, err = r.pool.Query(ctx, refundRequestSelect+` ORDER BY requested_at DESC`)
	} else {
		rows, err = r.pool.Query(ctx,
			refundRequestSelect+` WHERE decision = $1 ORDER BY requested_at DESC`, decision)
	}
	if err != nil {
		return nil, fmt.Errorf("select refund requests: %w", err)
	}
	defer rows.Close()

	var res []model.RefundRequest
	for rows.Next() {
		rr, err := scanRefundRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan refund request: %w", err)
		}
		res = append(res, *rr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}
