package cashier

// CreateReportRequest opens a draft report for one shift.
type CreateReportRequest struct {
	Date           string  `json:"date" validate:"required,datetime=2006-01-02"`
	LocationID     int64   `json:"location_id" validate:"required,gt=0"`
	OpeningBalance float64 `json:"opening_balance"`
	ClosingBalance float64 `json:"closing_balance"`
	TotalIncome    float64 `json:"total_income" validate:"gte=0"`
	TotalExpenses  float64 `json:"total_expenses" validate:"gte=0"`
	Notes          string  `json:"notes,omitempty"`
}

// UpdateReportRequest patches a draft report's manual figures.
type UpdateReportRequest struct {
	OpeningBalance *float64 `json:"opening_balance,omitempty"`
	ClosingBalance *float64 `json:"closing_balance,omitempty"`
	TotalIncome    *float64 `json:"total_income,omitempty" validate:"omitempty,gte=0"`
	TotalExpenses  *float64 `json:"total_expenses,omitempty" validate:"omitempty,gte=0"`
	Notes          *string  `json:"notes,omitempty"`
}

// LineRequest adds a category breakdown row to a draft report.
type LineRequest struct {
	Type       string  `json:"type" validate:"required,oneof=income expense"`
	CategoryID int64   `json:"category_id" validate:"required,gt=0"`
	Amount     float64 `json:"amount" validate:"required,gt=0"`
	Notes      string  `json:"notes,omitempty"`
}

// PaymentRequest adds a payment-method split row to a draft report.
type PaymentRequest struct {
	PaymentMethodID int64   `json:"payment_method_id" validate:"required,gt=0"`
	Amount          float64 `json:"amount" validate:"required,gt=0"`
}

// ReportDetail is the full report view with its rows and the current
// reconciliation result.
type ReportDetail struct {
	Report   Report          `json:"report"`
	Lines    []ReportLine    `json:"lines"`
	Payments []ReportPayment `json:"payments"`
	Warnings []Warning       `json:"warnings"`
}
