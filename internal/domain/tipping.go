package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ValidateTip проверяет сумму и валюту до обращения к хранилищу.
func ValidateTip(amount decimal.Decimal, currency Currency) error {
	if !amount.IsPositive() || !Storable(amount) {
		return ErrInvalidAmount
	}
	if !currency.Valid() {
		return ErrInvalidCurrency
	}
	return nil
}

// ApplyTip проверяет правила чаевых и добавляет Tip в журнал объекта.
// Баланс отправителя не меняется: списание выполняет хранилище вместе
// с записью поста.
//
// Чаевые на собственный пост разрешены, на собственный комментарий или
// ответ - нет.
func ApplyTip(target Target, postID string, sender *User, amount decimal.Decimal, currency Currency, now time.Time) (Tip, error) {
	if err := ValidateTip(amount, currency); err != nil {
		return Tip{}, err
	}
	if target.Kind != KindPost && target.OwnerID == sender.ID {
		return Tip{}, ErrSelfTip
	}
	if target.Escrow.TippedBy(sender.ID) {
		return Tip{}, ErrAlreadyTipped
	}
	if target.Escrow.IsPaidOut {
		return Tip{}, ErrAlreadySettled
	}
	if sender.Balance.LessThan(amount) {
		return Tip{}, ErrInsufficientBalance
	}

	tip := Tip{
		ID:           uuid.NewString(),
		PostID:       postID,
		TargetID:     target.ID,
		TargetKind:   target.Kind,
		FromUserID:   sender.ID,
		FromUsername: sender.Username,
		ToUserID:     target.OwnerID,
		ToUsername:   target.OwnerName,
		Amount:       amount,
		Currency:     currency,
		Status:       TipPending,
		CreatedAt:    now,
	}
	if err := target.Escrow.AddTip(tip); err != nil {
		return Tip{}, err
	}
	return tip, nil
}
