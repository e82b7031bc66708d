package cashier

import "time"

// ReportStatus enumerates the shift report lifecycle. Transitions run
// strictly forward: draft -> submitted -> approved. A privileged revert from
// submitted back to draft is the only exception and is audit logged.
type ReportStatus string

const (
	StatusDraft     ReportStatus = "draft"
	StatusSubmitted ReportStatus = "submitted"
	StatusApproved  ReportStatus = "approved"
)

// LineType selects between the income and expense line tables.
type LineType string

const (
	LineIncome  LineType = "income"
	LineExpense LineType = "expense"
)

// Report is one cashier shift summary, unique per (report_date, location).
// Its totals are entered manually and reconciled against the timeline; the
// two records are never merged.
type Report struct {
	ID             int64        `json:"id"`
	ReportDate     time.Time    `json:"report_date"`
	LocationID     int64        `json:"location_id"`
	CreatedBy      int64        `json:"created_by"`
	OpeningBalance float64      `json:"opening_balance"`
	ClosingBalance float64      `json:"closing_balance"`
	TotalIncome    float64      `json:"total_income"`
	TotalExpenses  float64      `json:"total_expenses"`
	Notes          string       `json:"notes,omitempty"`
	Status         ReportStatus `json:"status"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// ReportLine is a manually entered category breakdown row.
type ReportLine struct {
	ID         int64    `json:"id"`
	ReportID   int64    `json:"report_id"`
	Type       LineType `json:"type"`
	CategoryID int64    `json:"category_id"`
	Amount     float64  `json:"amount"`
	Notes      string   `json:"notes,omitempty"`
}

// ReportPayment is a manually entered payment-method split row.
type ReportPayment struct {
	ID              int64   `json:"id"`
	ReportID        int64   `json:"report_id"`
	PaymentMethodID int64   `json:"payment_method_id"`
	Amount          float64 `json:"amount"`
}

// Warning is a reconciliation discrepancy. Warnings surface alongside the
// report and never block a transition unless strict mode is requested.
type Warning struct {
	Code     string  `json:"code"`
	Field    string  `json:"field,omitempty"`
	Expected float64 `json:"expected"`
	Actual   float64 `json:"actual"`
}

// Warning codes.
const (
	WarnLineTotalIncome  = "line_total_income_mismatch"
	WarnLineTotalExpense = "line_total_expense_mismatch"
	WarnBalanceEquation  = "balance_equation_mismatch"
	WarnLedgerIncome     = "ledger_income_mismatch"
	WarnLedgerExpense    = "ledger_expense_mismatch"
	WarnPaymentMethod    = "payment_method_mismatch"
)
