package domain

import "github.com/shopspring/decimal"

// Ограничения сумм совпадают с колонками numeric(20,8) хранилища: сумма,
// которую колонка округлила бы, разошлась бы с документом поста.
const AmountScale = 8

// MaxAmount - граница суммы и баланса (не включительно).
var MaxAmount = decimal.New(1, 20-AmountScale)

// Storable сообщает, хранится ли сумма без округления.
func Storable(d decimal.Decimal) bool {
	return d.Abs().LessThan(MaxAmount) && d.Equal(d.Truncate(AmountScale))
}

// ValidateBalance проверяет начальный баланс пользователя.
func ValidateBalance(d decimal.Decimal) error {
	if d.IsNegative() || !Storable(d) {
		return ErrInvalidBalance
	}
	return nil
}
