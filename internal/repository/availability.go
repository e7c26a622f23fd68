package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/janabsyco4-wq/hotelogix-management-system-sub000/internal/model"
)

// ReserveRoomRange атомарно резервирует комнату на полуинтервал дат
// [checkIn, checkOut). Строка комнаты блокируется FOR UPDATE, чтобы два
// конкурентных запроса на пересекающиеся даты не прошли проверку
// одновременно: второй увидит резерв первого и получит
// ErrRoomRangeConflict. Возвращает токен резервирования.
func (r *PostgresRepository) ReserveRoomRange(ctx context.Context, roomID int64, checkIn, checkOut time.Time) (string, error) {
	var token string
	err := r.withRetry(ctx, func() error {
		var err error
		token, err = r.reserveRoomRangeTx(ctx, roomID, checkIn, checkOut)
		return err
	})
	return token, err
}

func (r *PostgresRepository) reserveRoomRangeTx(ctx context.Context, roomID int64, checkIn, checkOut time.Time) (string, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Сериализуем резервирования по комнате: вся проверка пересечения
	// выполняется под блокировкой строки комнаты.
	var dummy int
	err = tx.QueryRow(ctx, `SELECT 1 FROM rooms WHERE id = $1 FOR UPDATE`, roomID).Scan(&dummy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrTargetNotFound
		}
		return "", fmt.Errorf("lock room for update: %w", err)
	}

	var conflict bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (
		     SELECT 1 FROM capacity_reservations
		     WHERE room_id = $1 AND check_in < $3 AND check_out > $2
		 )`,
		roomID, checkIn, checkOut,
	).Scan(&conflict)
	if err != nil {
		return "", fmt.Errorf("check range overlap: %w", err)
	}
	if conflict {
		return "", ErrRoomRangeConflict
	}

	token := uuid.NewString()
	_, err = tx.Exec(ctx,
		`INSERT INTO capacity_reservations (token, kind, room_id, check_in, check_out)
		 VALUES ($1, $2, $3, $4, $5)`,
		token, string(model.KindRoom), roomID, checkIn, checkOut,
	)
	if err != nil {
		return "", fmt.Errorf("insert capacity reservation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit tx: %w", err)
	}

	return token, nil
}

// ReserveCounterSlot атомарно занимает один слот погашения акции или
// бронирования пакета. Инкремент счётчика выполняется одним условным
// UPDATE: при исчерпанном лимите ни одна строка не изменяется и
// возвращается ErrSoldOut. NULL-лимит означает отсутствие ограничения.
func (r *PostgresRepository) ReserveCounterSlot(ctx context.Context, entityID int64, kind model.BookingKind) (string, error) {
	var token string
	err := r.withRetry(ctx, func() error {
		var err error
		token, err = r.reserveCounterSlotTx(ctx, entityID, kind)
		return err
	})
	return token, err
}

func (r *PostgresRepository) reserveCounterSlotTx(ctx context.Context, entityID int64, kind model.BookingKind) (string, error) {
	var incrementQuery, existsQuery string
	switch kind {
	case model.KindDeal:
		incrementQuery = `UPDATE deals SET current_redemptions = current_redemptions + 1
		                  WHERE id = $1 AND (max_redemptions IS NULL OR current_redemptions < max_redemptions)`
		existsQuery = `SELECT EXISTS (SELECT 1 FROM deals WHERE id = $1)`
	case model.KindPackage:
		incrementQuery = `UPDATE packages SET current_bookings = current_bookings + 1
		                  WHERE id = $1 AND (max_bookings IS NULL OR current_bookings < max_bookings)`
		existsQuery = `SELECT EXISTS (SELECT 1 FROM packages WHERE id = $1)`
	default:
		return "", fmt.Errorf("kind %q has no counter capacity", kind)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	cmdTag, err := tx.Exec(ctx, incrementQuery, entityID)
	if err != nil {
		return "", fmt.Errorf("increment counter: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, existsQuery, entityID).Scan(&exists); err != nil {
			return "", fmt.Errorf("check entity exists: %w", err)
		}
		if !exists {
			return "", ErrTargetNotFound
		}
		return "", ErrSoldOut
	}

	token := uuid.NewString()
	_, err = tx.Exec(ctx,
		`INSERT INTO capacity_reservations (token, kind, counter_id) VALUES ($1, $2, $3)`,
		token, string(kind), entityID,
	)
	if err != nil {
		return "", fmt.Errorf("insert capacity reservation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit tx: %w", err)
	}

	return token, nil
}

// ReleaseReservation освобождает резерв по токену. Операция идемпотентна:
// повторное освобождение или неизвестный токен — не ошибка, чтобы
// повторяемые сценарии отмены работали безопасно.
func (r *PostgresRepository) ReleaseReservation(ctx context.Context, token string) error {
	return r.withRetry(ctx, func() error {
		return r.releaseReservationTx(ctx, token)
	})
}

func (r *PostgresRepository) releaseReservationTx(ctx context.Context, token string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var kind string
	var counterID *int64
	err = tx.QueryRow(ctx,
		`DELETE FROM capacity_reservations WHERE token = $1 RETURNING kind, counter_id`,
		token,
	).Scan(&kind, &counterID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("delete capacity reservation: %w", err)
	}

	if counterID != nil {
		switch model.BookingKind(kind) {
		case model.KindDeal:
			_, err = tx.Exec(ctx,
				`UPDATE deals SET current_redemptions = GREATEST(current_redemptions - 1, 0) WHERE id = $1`,
				*counterID,
			)
		case model.KindPackage:
			_, err = tx.Exec(ctx,
				`UPDATE packages SET current_bookings = GREATEST(current_bookings - 1, 0) WHERE id = $1`,
				*counterID,
			)
		}
		if err != nil {
			return fmt.Errorf("decrement counter: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}
