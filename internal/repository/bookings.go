package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/janabsyco4-wq/hotelogix-management-system-sub000/internal/model"
)

const bookingColumns = `id, user_id, kind, target_id, amount_cents, currency, status,
	payment_intent_id, capacity_token, check_in, check_out, reservation_date,
	reservation_time, guests, start_date, redemption_code, created_at`

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var b model.Booking
	err := row.Scan(
		&b.ID, &b.UserID, &b.Kind, &b.TargetID, &b.AmountCents, &b.Currency, &b.Status,
		&b.PaymentIntentID, &b.CapacityToken, &b.CheckIn, &b.CheckOut, &b.Date,
		&b.TimeSlot, &b.Guests, &b.StartDate, &b.RedemptionCode, &b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateBooking сохраняет новое бронирование и заполняет его ID и время создания.
func (r *PostgresRepository) CreateBooking(ctx context.Context, b *model.Booking) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO bookings (user_id, kind, target_id, amount_cents, currency, status,
		     payment_intent_id, capacity_token, check_in, check_out, reservation_date,
		     reservation_time, guests, start_date, redemption_code)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 RETURNING id, created_at`,
		b.UserID, string(b.Kind), b.TargetID, b.AmountCents, b.Currency, string(b.Status),
		b.PaymentIntentID, b.CapacityToken, b.CheckIn, b.CheckOut, b.Date,
		b.TimeSlot, b.Guests, b.StartDate, b.RedemptionCode,
	).Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

// GetBooking возвращает бронирование по идентификатору.
func (r *PostgresRepository) GetBooking(ctx context.Context, id int64) (*model.Booking, error) {
	b, err := scanBooking(r.pool.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

// GetBookingForUser возвращает бронирование по идентификатору с проверкой владельца.
func (r *PostgresRepository) GetBookingForUser(ctx context.Context, id, userID int64) (*model.Booking, error) {
	b, err := scanBooking(r.pool.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("get booking for user: %w", err)
	}
	return b, nil
}

// ListBookingsByUser возвращает бронирования пользователя, новые первыми.
func (r *PostgresRepository) ListBookingsByUser(ctx context.Context, userID int64) ([]model.Booking, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select bookings: %w", err)
	}
	defer rows.Close()

	return collectBookings(rows)
}

// ListBookings возвращает все бронирования, при необходимости отфильтрованные
// по статусу. Пустой статус означает отсутствие фильтра.
func (r *PostgresRepository) ListBookings(ctx context.Context, status model.BookingStatus) ([]model.Booking, error) {
	var rows pgx.Rows
	var err error
	if status == "" {
		rows, err = r.pool.Query(ctx,
			`SELECT `+bookingColumns+` FROM bookings ORDER BY created_at DESC`)
	} else {
		rows, err = r.pool.Query(ctx,
			`SELECT `+bookingColumns+` FROM bookings WHERE status = $1 ORDER BY created_at DESC`,
			string(status))
	}
	if err != nil {
		return nil, fmt.Errorf("select bookings: %w", err)
	}
	defer rows.Close()

	return collectBookings(rows)
}

func collectBookings(rows pgx.Rows) ([]model.Booking, error) {
	var res []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		res = append(res, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// ConfirmBooking переводит бронирование pending -> confirmed и фиксирует
// ссылку на платёж. Переход условный: при конкурентном подтверждении
// выигрывает ровно один вызов, остальные получают ErrStatusConflict.
func (r *PostgresRepository) ConfirmBooking(ctx context.Context, id int64, intentID string) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE bookings SET status = $2, payment_intent_id = $3
		 WHERE id = $1 AND status = $4`,
		id, string(model.StatusConfirmed), intentID, string(model.StatusPending),
	)
	if err != nil {
		return fmt.Errorf("confirm booking: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

// TransitionStatus выполняет условный переход статуса бронирования.
// Проверка ожидаемого текущего статуса и запись нового выполняются одним
// UPDATE, что сериализует конкурентные переходы по одному бронированию.
func (r *PostgresRepository) TransitionStatus(ctx context.Context, id int64, from, to model.BookingStatus) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE bookings SET status = $3 WHERE id = $1 AND status = $2`,
		id, string(from), string(to),
	)
	if err != nil {
		return fmt.Errorf("transition booking status: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

// ListPendingOlderThan возвращает незавершённые бронирования, созданные
// раньше указанного момента. Используется фоновой зачисткой брошенных
// pending-бронирований.
func (r *PostgresRepository) ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]model.Booking, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE status = $1 AND created_at < $2`,
		string(model.StatusPending), cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("select stale pending bookings: %w", err)
	}
	defer rows.Close()

	return collectBookings(rows)
}

// ListExpirableDealRedemptions возвращает подтверждённые погашения акций,
// чьё окно валидности уже закрылось.
func (r *PostgresRepository) ListExpirableDealRedemptions(ctx context.Context, now time.Time) ([]model.Booking, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+bookingColumnsPrefixed("b")+`
		 FROM bookings b
		 JOIN deals d ON d.id = b.target_id
		 WHERE b.kind = $1 AND b.status = $2 AND d.valid_until < $3`,
		string(model.KindDeal), string(model.StatusConfirmed), now,
	)
	if err != nil {
		return nil, fmt.Errorf("select expirable redemptions: %w", err)
	}
	defer rows.Close()

	return collectBookings(rows)
}

func bookingColumnsPrefixed(alias string) string {
	return alias + `.id, ` + alias + `.user_id, ` + alias + `.kind, ` + alias + `.target_id, ` +
		alias + `.amount_cents, ` + alias + `.currency, ` + alias + `.status, ` +
		alias + `.payment_intent_id, ` + alias + `.capacity_token, ` + alias + `.check_in, ` +
		alias + `.check_out, ` + alias + `.reservation_date, ` + alias + `.reservation_time, ` +
		alias + `.guests, ` + alias + `.start_date, ` + alias + `.redemption_code, ` + alias + `.created_at`
}

// GetRevenueSummary возвращает сводку выручки по подтверждённым бронированиям.
func (r *PostgresRepository) GetRevenueSummary(ctx context.Context) (*model.RevenueSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT kind, COALESCE(SUM(amount_cents), 0), COUNT(*)
		 FROM bookings
		 WHERE status = $1
		 GROUP BY kind`,
		string(model.StatusConfirmed),
	)
	if err != nil {
		return nil, fmt.Errorf("select revenue: %w", err)
	}
	defer rows.Close()

	summary := &model.RevenueSummary{ByKind: make(map[string]int64)}
	for rows.Next() {
		var kind string
		var sum, count int64
		if err := rows.Scan(&kind, &sum, &count); err != nil {
			return nil, fmt.Errorf("scan revenue row: %w", err)
		}
		summary.ByKind[kind] = sum
		summary.TotalCents += sum
		summary.BookingCount += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return summary, nil
}
