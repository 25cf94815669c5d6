package domain

import (
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Escrow - журнал чаевых одного объекта и его состояние выплаты.
//
// Чаевые только добавляются. TotalTips всегда равен сумме Amount по Tips
// этого объекта (без потомков). IsPaidOut переходит false -> true один раз.
type Escrow struct {
	Tips      []Tip           `json:"tips"`
	TotalTips decimal.Decimal `json:"totalTips"`
	PayoutAt  time.Time       `json:"payoutAt"`
	IsPaidOut bool            `json:"isPaidOut"`
}

// NewEscrow создает пустой журнал с окном удержания от createdAt.
func NewEscrow(createdAt time.Time, holdingWindow time.Duration) Escrow {
	return Escrow{
		Tips:      []Tip{},
		TotalTips: decimal.Zero,
		PayoutAt:  createdAt.Add(holdingWindow),
	}
}

// TippedBy сообщает, отправлял ли пользователь чаевые на этот объект.
func (e *Escrow) TippedBy(userID string) bool {
	return lo.ContainsBy(e.Tips, func(t Tip) bool { return t.FromUserID == userID })
}

// AddTip добавляет чаевые и увеличивает TotalTips.
func (e *Escrow) AddTip(tip Tip) error {
	if e.TippedBy(tip.FromUserID) {
		return ErrAlreadyTipped
	}
	e.Tips = append(e.Tips, tip)
	e.TotalTips = e.TotalTips.Add(tip.Amount)
	return nil
}

// Sum пересчитывает сумму чаевых по журналу.
func (e *Escrow) Sum() decimal.Decimal {
	return lo.Reduce(e.Tips, func(acc decimal.Decimal, t Tip, _ int) decimal.Decimal {
		return acc.Add(t.Amount)
	}, decimal.Zero)
}

// Due сообщает, истекло ли окно удержания у невыплаченного объекта.
// Объект без PayoutAt никогда не считается готовым к выплате.
func (e *Escrow) Due(now time.Time) bool {
	return !e.IsPaidOut && !e.PayoutAt.IsZero() && !now.Before(e.PayoutAt)
}

// MarkPaidOut переводит объект в состояние Settled и отпускает его чаевые.
// Возвращает false, если объект уже был выплачен.
func (e *Escrow) MarkPaidOut() bool {
	if e.IsPaidOut {
		return false
	}
	e.IsPaidOut = true
	for i := range e.Tips {
		e.Tips[i].Status = TipReleased
	}
	return true
}

func (e Escrow) clone() Escrow {
	e.Tips = append([]Tip(nil), e.Tips...)
	if e.Tips == nil {
		e.Tips = []Tip{}
	}
	return e
}
