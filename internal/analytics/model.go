package analytics

import "time"

// Granularity sets the bucket width for pivot and trend periods.
type Granularity string

const (
	ByDay   Granularity = "day"
	ByMonth Granularity = "month"
)

// PivotGrouping selects the row dimension of a pivot: individual categories
// or analytic blocks.
type PivotGrouping string

const (
	GroupByCategory PivotGrouping = "category"
	GroupByBlock    PivotGrouping = "block"
)

// Range scopes an aggregation to a date window and optionally one location.
type Range struct {
	From       time.Time
	To         time.Time
	LocationID *int64
}

// Dashboard is the headline summary for a window. Profitability is profit as
// a percentage of revenue; PrimeCost sums the food_cost and labor_cost blocks.
type Dashboard struct {
	Revenue       float64          `json:"revenue"`
	Expenses      float64          `json:"expenses"`
	Profit        float64          `json:"profit"`
	Profitability float64          `json:"profitability"`
	PrimeCost     float64          `json:"prime_cost"`
	Blocks        []BlockAmount    `json:"blocks"`
	Accounts      []AccountBalance `json:"accounts"`
	TotalBalance  float64          `json:"total_balance"`
}

// BlockAmount is one analytic block's expense total within the window.
// Percent is the block's share of revenue.
type BlockAmount struct {
	BlockID int64   `json:"block_id"`
	Code    string  `json:"code"`
	Name    string  `json:"name"`
	Amount  float64 `json:"amount"`
	Percent float64 `json:"percent"`
}

// AccountBalance is one active account's current balance.
type AccountBalance struct {
	AccountID int64   `json:"account_id"`
	Name      string  `json:"name"`
	Balance   float64 `json:"balance"`
}

// CategoryShare is one category's total and share within a type and window.
type CategoryShare struct {
	CategoryID int64   `json:"category_id"`
	Name       string  `json:"name"`
	Amount     float64 `json:"amount"`
	Percent    float64 `json:"percent"`
}

// PivotRow is one aggregated leaf cell: period, analytic type, category.
type PivotRow struct {
	Period       string  `json:"period"`
	Type         string  `json:"type"`
	CategoryID   int64   `json:"category_id"`
	CategoryName string  `json:"category_name"`
	Amount       float64 `json:"amount"`
}

// PivotPeriod groups one period's cells by analytic type.
type PivotPeriod struct {
	Period string       `json:"period"`
	Groups []PivotGroup `json:"groups"`
}

// PivotGroup is one analytic type within a period with its category cells.
type PivotGroup struct {
	Type       string      `json:"type"`
	Total      float64     `json:"total"`
	Categories []PivotCell `json:"categories"`
}

// PivotCell is one category amount inside a group.
type PivotCell struct {
	CategoryID   int64   `json:"category_id"`
	CategoryName string  `json:"category_name"`
	Amount       float64 `json:"amount"`
}

// TrendPoint is one bucket in a gap-free series.
type TrendPoint struct {
	Period  string  `json:"period"`
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
	Net     float64 `json:"net"`
}

// CellDetail is one underlying timeline event behind a pivot cell.
type CellDetail struct {
	ID          int64     `json:"id"`
	Date        time.Time `json:"date"`
	Type        string    `json:"type"`
	Amount      float64   `json:"amount"`
	Description string    `json:"description,omitempty"`
	AccountName string    `json:"account_name,omitempty"`
}
