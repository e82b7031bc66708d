package ledger

import (
	"time"

	"github.com/air-waffle/finance/internal/catalog"
)

// EventType enumerates timeline event kinds.
type EventType string

const (
	TypeExpense  EventType = "expense"
	TypeIncome   EventType = "income"
	TypeTransfer EventType = "transfer"
)

// Event is a single ledger line, the source of truth for money movement.
// Exactly one of the category fields or the transfer account pair is
// populated, matching Type.
//
// AccountID holds the settlement account resolved from the payment method at
// record time. CreditedAmount is the amount actually credited after
// commission; it equals Amount unless commission mode reduced it. Both are
// stored so a later update or delete reverses the exact applied effect even
// if the payment-method mapping or commission rate changes afterwards.
type Event struct {
	ID              int64                 `json:"id"`
	Date            time.Time             `json:"date"`
	Type            EventType             `json:"type"`
	CategoryID      *int64                `json:"category_id,omitempty"`
	CategoryType    *catalog.CategoryType `json:"category_type,omitempty"`
	AccountID       *int64                `json:"account_id,omitempty"`
	FromAccountID   *int64                `json:"from_account_id,omitempty"`
	ToAccountID     *int64                `json:"to_account_id,omitempty"`
	Amount          float64               `json:"amount"`
	CreditedAmount  float64               `json:"credited_amount"`
	PaymentMethodID *int64                `json:"payment_method_id,omitempty"`
	Description     string                `json:"description,omitempty"`
	LocationID      *int64                `json:"location_id,omitempty"`
	CreatedBy       int64                 `json:"created_by"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// BalanceEffect is a signed delta against one account.
type BalanceEffect struct {
	AccountID int64
	Delta     float64
}

// Effects returns the balance deltas this event applies. Expense debits the
// settlement account by the full amount; income credits it by the credited
// amount; a transfer debits from and credits to by the same amount.
func (e Event) Effects() []BalanceEffect {
	switch e.Type {
	case TypeExpense:
		if e.AccountID == nil {
			return nil
		}
		return []BalanceEffect{{AccountID: *e.AccountID, Delta: -e.Amount}}
	case TypeIncome:
		if e.AccountID == nil {
			return nil
		}
		return []BalanceEffect{{AccountID: *e.AccountID, Delta: e.CreditedAmount}}
	case TypeTransfer:
		if e.FromAccountID == nil || e.ToAccountID == nil {
			return nil
		}
		return []BalanceEffect{
			{AccountID: *e.FromAccountID, Delta: -e.Amount},
			{AccountID: *e.ToAccountID, Delta: e.Amount},
		}
	}
	return nil
}

// ReverseEffects returns the deltas that undo this event.
func (e Event) ReverseEffects() []BalanceEffect {
	effects := e.Effects()
	reversed := make([]BalanceEffect, len(effects))
	for i, effect := range effects {
		reversed[i] = BalanceEffect{AccountID: effect.AccountID, Delta: -effect.Delta}
	}
	return reversed
}

// EventView is an event joined with catalog names for listing.
type EventView struct {
	Event
	CategoryName      string `json:"category_name,omitempty"`
	PaymentMethodName string `json:"payment_method_name,omitempty"`
	LocationName      string `json:"location_name,omitempty"`
	FromAccountName   string `json:"from_account_name,omitempty"`
	ToAccountName     string `json:"to_account_name,omitempty"`
	CreatedByName     string `json:"created_by_name,omitempty"`
}

// BalanceReport is one account's drift-detection row.
type BalanceReport struct {
	AccountID      int64   `json:"account_id"`
	Name           string  `json:"name"`
	InitialBalance float64 `json:"initial_balance"`
	Stored         float64 `json:"stored"`
	Computed       float64 `json:"computed"`
	Drift          float64 `json:"drift"`
}
