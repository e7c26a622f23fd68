// Package policy содержит расчёт политики возврата при отмене бронирования.
package policy

import (
	"errors"
	"time"
)

// ErrNegativeAmount возвращается при попытке рассчитать возврат для
// отрицательной суммы.
var ErrNegativeAmount = errors.New("amount must not be negative")

// Ярлыки ценовых уровней политики возврата.
const (
	TierFree    = "free"
	TierPartial = "partial"
	TierNone    = "none"
)

// Result — результат расчёта политики возврата.
type Result struct {
	Percentage  int32
	AmountCents int64
	TierLabel   string
	HoursUntil  int64
}

// Compute рассчитывает процент и сумму возврата по времени, оставшемуся до
// начала услуги. Границы уровней включительные: >= 48 часов — 100%,
// 24..48 часов — 50%, меньше 24 часов — 0%. Если начало услуги уже в
// прошлом, остаток часов считается нулевым. Сумма округляется до минорной
// единицы валюты в большую сторону от половины, чтобы не занижать возврат.
// Функция чистая и детерминированная.
func Compute(amountCents int64, serviceStart, now time.Time) (Result, error) {
	if amountCents < 0 {
		return Result{}, ErrNegativeAmount
	}

	hours := serviceStart.Sub(now).Hours()
	if hours < 0 {
		hours = 0
	}

	var percentage int32
	var tier string

	switch {
	case hours >= 48:
		percentage = 100
		tier = TierFree
	case hours >= 24:
		percentage = 50
		tier = TierPartial
	default:
		percentage = 0
		tier = TierNone
	}

	return Result{
		Percentage:  percentage,
		AmountCents: roundHalfUp(amountCents, percentage),
		TierLabel:   tier,
		HoursUntil:  int64(hours),
	}, nil
}

// roundHalfUp возвращает amount * pct / 100 с округлением половины вверх.
func roundHalfUp(amountCents int64, pct int32) int64 {
	return (amountCents*int64(pct) + 50) / 100
}
