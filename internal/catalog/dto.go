package catalog

// CreateAccountRequest is the payload for account creation.
type CreateAccountRequest struct {
	Name           string  `json:"name" validate:"required"`
	Kind           string  `json:"kind" validate:"required,oneof=cash bank card"`
	Currency       string  `json:"currency"`
	InitialBalance float64 `json:"initial_balance"`
}

// UpdateAccountRequest patches account fields; nil fields are left as-is.
type UpdateAccountRequest struct {
	Name     *string `json:"name,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// CreatePaymentMethodRequest registers a payment method and the account its
// settlements credit.
type CreatePaymentMethodRequest struct {
	Name              string  `json:"name" validate:"required"`
	CommissionPercent float64 `json:"commission_percent" validate:"gte=0,lte=100"`
	AccountID         int64   `json:"account_id" validate:"required"`
}

// UpdatePaymentMethodRequest patches payment method fields; nil fields are
// left as-is.
type UpdatePaymentMethodRequest struct {
	Name              *string  `json:"name,omitempty"`
	CommissionPercent *float64 `json:"commission_percent,omitempty"`
	AccountID         *int64   `json:"account_id,omitempty"`
	IsActive          *bool    `json:"is_active,omitempty"`
}

// CreateLocationRequest registers a sales location.
type CreateLocationRequest struct {
	Name    string `json:"name" validate:"required"`
	Address string `json:"address"`
}

// CreateCategoryRequest covers both category tables; ParentID is only valid
// for expense categories.
type CreateCategoryRequest struct {
	Name     string `json:"name" validate:"required"`
	Type     string `json:"type" validate:"required,oneof=expense income"`
	ParentID *int64 `json:"parent_id,omitempty"`
}

// ReparentCategoryRequest moves an expense category in the tree.
type ReparentCategoryRequest struct {
	ParentID *int64 `json:"parent_id"`
}

// CreateBlockRequest registers an analytic block.
type CreateBlockRequest struct {
	Code         string  `json:"code" validate:"required"`
	Name         string  `json:"name" validate:"required"`
	DisplayOrder int     `json:"display_order"`
	CategoryIDs  []int64 `json:"category_ids"`
}

// SetBlockCategoriesRequest replaces a block's memberships.
type SetBlockCategoriesRequest struct {
	CategoryIDs []int64 `json:"category_ids"`
}
