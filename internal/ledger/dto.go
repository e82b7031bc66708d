package ledger

import "time"

// CreateEventRequest is the payload for recording a timeline event.
// Category fields apply to expense/income, the account pair to transfers.
type CreateEventRequest struct {
	Date            string  `json:"date" validate:"required,datetime=2006-01-02"`
	Type            string  `json:"type" validate:"required,oneof=expense income transfer"`
	CategoryID      *int64  `json:"category_id,omitempty"`
	Amount          float64 `json:"amount" validate:"required"`
	PaymentMethodID *int64  `json:"payment_method_id,omitempty"`
	FromAccountID   *int64  `json:"from_account_id,omitempty"`
	ToAccountID     *int64  `json:"to_account_id,omitempty"`
	Description     string  `json:"description,omitempty"`
	LocationID      *int64  `json:"location_id,omitempty"`
}

// UpdateEventRequest is a partial patch; the merged event is re-validated as
// if newly created.
type UpdateEventRequest struct {
	Date            *string  `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	CategoryID      *int64   `json:"category_id,omitempty"`
	Amount          *float64 `json:"amount,omitempty"`
	PaymentMethodID *int64   `json:"payment_method_id,omitempty"`
	FromAccountID   *int64   `json:"from_account_id,omitempty"`
	ToAccountID     *int64   `json:"to_account_id,omitempty"`
	Description     *string  `json:"description,omitempty"`
	LocationID      *int64   `json:"location_id,omitempty"`
}

// Filter narrows a timeline query. Limit is clamped server side.
type Filter struct {
	DateFrom   *time.Time
	DateTo     *time.Time
	Type       *EventType
	CategoryID *int64
	AccountID  *int64
	LocationID *int64
	Limit      int
	Offset     int
}
