package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/janabsyco4-wq/hotelogix-management-system-sub000/internal/model"
)

// Каталог (комнаты, рестораны, акции, пакеты) для движка доступен только
// на чтение; единственное исключение — счётчики погашений, которыми владеет
// availability-часть репозитория.

// GetRoom возвращает комнату по идентификатору.
func (r *PostgresRepository) GetRoom(ctx context.Context, id int64) (*model.Room, error) {
	var room model.Room
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, price_per_night_cents, max_guests FROM rooms WHERE id = $1`,
		id,
	).Scan(&room.ID, &room.Title, &room.PricePerNightCents, &room.MaxGuests)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTargetNotFound
		}
		return nil, fmt.Errorf("get room: %w", err)
	}
	return &room, nil
}

// GetRestaurant возвращает ресторан по идентификатору.
func (r *PostgresRepository) GetRestaurant(ctx context.Context, id int64) (*model.Restaurant, error) {
	var rest model.Restaurant
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, deposit_per_guest_cents, capacity FROM restaurants WHERE id = $1`,
		id,
	).Scan(&rest.ID, &rest.Name, &rest.DepositPerGuestCents, &rest.Capacity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTargetNotFound
		}
		return nil, fmt.Errorf("get restaurant: %w", err)
	}
	return &rest, nil
}

// GetDeal возвращает акцию по идентификатору.
func (r *PostgresRepository) GetDeal(ctx context.Context, id int64) (*model.Deal, error) {
	var d model.Deal
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, price_cents, valid_from, valid_until, max_redemptions, current_redemptions
		 FROM deals WHERE id = $1`,
		id,
	).Scan(&d.ID, &d.Title, &d.PriceCents, &d.ValidFrom, &d.ValidUntil, &d.MaxRedemptions, &d.CurrentRedemptions)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTargetNotFound
		}
		return nil, fmt.Errorf("get deal: %w", err)
	}
	return &d, nil
}

// GetPackage возвращает пакет по идентификатору.
func (r *PostgresRepository) GetPackage(ctx context.Context, id int64) (*model.Package, error) {
	var p model.Package
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, price_per_person_cents, max_bookings, current_bookings
		 FROM packages WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Name, &p.PricePerPersonCents, &p.MaxBookings, &p.CurrentBookings)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTargetNotFound
		}
		return nil, fmt.Errorf("get package: %w", err)
	}
	return &p, nil
}
