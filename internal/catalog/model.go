package catalog

import "time"

// AccountKind enumerates the supported account kinds.
type AccountKind string

const (
	AccountCash AccountKind = "cash"
	AccountBank AccountKind = "bank"
	AccountCard AccountKind = "card"
)

// CategoryType distinguishes the two disjoint category tables.
type CategoryType string

const (
	CategoryExpense CategoryType = "expense"
	CategoryIncome  CategoryType = "income"
)

// Account is a money store. CurrentBalance is derived and owned by the
// ledger's balance maintainer; the catalog never writes it.
type Account struct {
	ID             int64       `json:"id"`
	Name           string      `json:"name"`
	Kind           AccountKind `json:"kind"`
	Currency       string      `json:"currency"`
	InitialBalance float64     `json:"initial_balance"`
	CurrentBalance float64     `json:"current_balance"`
	IsActive       bool        `json:"is_active"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// ExpenseCategory is a node in the expense category tree.
type ExpenseCategory struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	ParentID  *int64    `json:"parent_id,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// IncomeCategory is flat; income has no hierarchy.
type IncomeCategory struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// PaymentMethod links a way of paying to the account it settles into.
// CommissionPercent is informational unless commission mode is enabled.
type PaymentMethod struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	CommissionPercent float64   `json:"commission_percent"`
	AccountID         int64     `json:"account_id"`
	IsActive          bool      `json:"is_active"`
	CreatedAt         time.Time `json:"created_at"`
}

// Location is a shop/branch.
type Location struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// User mirrors the identity resolved by the upstream auth layer.
type User struct {
	ID         int64     `json:"id"`
	ExternalID int64     `json:"external_id"`
	Username   string    `json:"username"`
	FullName   string    `json:"full_name"`
	Role       string    `json:"role"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
}

// AnalyticBlock is a named grouping of expense categories used for reporting.
// Membership is many-to-many: one category may sit in several blocks.
type AnalyticBlock struct {
	ID           int64     `json:"id"`
	Code         string    `json:"code"`
	Name         string    `json:"name"`
	DisplayOrder int       `json:"display_order"`
	IsActive     bool      `json:"is_active"`
	CategoryIDs  []int64   `json:"category_ids"`
	CreatedAt    time.Time `json:"created_at"`
}
