package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/air-waffle/finance/internal/shared"
)

// maxCategoryDepth guards the ancestor walk against corrupted parent chains.
const maxCategoryDepth = 64

// AuditPort records catalog mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service exposes catalog operations with role checks.
type Service struct {
	repo  Repository
	audit AuditPort
}

// NewService wires the catalog service.
func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

func (s *Service) ListAccounts(ctx context.Context, activeOnly bool) ([]Account, error) {
	return s.repo.ListAccounts(ctx, activeOnly)
}

func (s *Service) GetAccount(ctx context.Context, id int64) (Account, error) {
	return s.repo.GetAccount(ctx, id)
}

func (s *Service) CreateAccount(ctx context.Context, actor shared.Actor, in CreateAccountRequest) (Account, error) {
	if !actor.Privileged() {
		return Account{}, &shared.AuthorizationError{Rule: "only owner or manager may create accounts"}
	}
	if strings.TrimSpace(in.Name) == "" {
		return Account{}, shared.Validationf("name", "required")
	}
	switch AccountKind(in.Kind) {
	case AccountCash, AccountBank, AccountCard:
	default:
		return Account{}, shared.Validationf("kind", "must be cash, bank or card")
	}
	currency := in.Currency
	if currency == "" {
		currency = "UZS"
	}
	account, err := s.repo.InsertAccount(ctx, Account{
		Name:           strings.TrimSpace(in.Name),
		Kind:           AccountKind(in.Kind),
		Currency:       currency,
		InitialBalance: in.InitialBalance,
	})
	if err != nil {
		return Account{}, err
	}
	s.record(ctx, actor, "account.create", "account", account.ID, nil)
	return account, nil
}

// UpdateAccount renames or archives an account. Balances only move through
// the ledger, never through this path.
func (s *Service) UpdateAccount(ctx context.Context, actor shared.Actor, id int64, in UpdateAccountRequest) (Account, error) {
	if !actor.Privileged() {
		return Account{}, &shared.AuthorizationError{Rule: "only owner or manager may edit accounts"}
	}
	account, err := s.repo.GetAccount(ctx, id)
	if err != nil {
		return Account{}, err
	}
	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return Account{}, shared.Validationf("name", "required")
		}
		account.Name = strings.TrimSpace(*in.Name)
	}
	if in.IsActive != nil {
		account.IsActive = *in.IsActive
	}
	if err := s.repo.UpdateAccount(ctx, account); err != nil {
		return Account{}, err
	}
	s.record(ctx, actor, "account.update", "account", account.ID, nil)
	return account, nil
}

func (s *Service) ListExpenseCategories(ctx context.Context) ([]ExpenseCategory, error) {
	return s.repo.ListExpenseCategories(ctx)
}

func (s *Service) ListIncomeCategories(ctx context.Context) ([]IncomeCategory, error) {
	return s.repo.ListIncomeCategories(ctx)
}

func (s *Service) CreateCategory(ctx context.Context, actor shared.Actor, in CreateCategoryRequest) (any, error) {
	if !actor.Privileged() {
		return nil, &shared.AuthorizationError{Rule: "only owner or manager may create categories"}
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, shared.Validationf("name", "required")
	}
	switch CategoryType(in.Type) {
	case CategoryExpense:
		if in.ParentID != nil {
			if _, err := s.repo.GetExpenseCategory(ctx, *in.ParentID); err != nil {
				return nil, err
			}
		}
		category, err := s.repo.InsertExpenseCategory(ctx, ExpenseCategory{Name: strings.TrimSpace(in.Name), ParentID: in.ParentID})
		if err != nil {
			return nil, err
		}
		s.record(ctx, actor, "category.create", "expense_category", category.ID, nil)
		return category, nil
	case CategoryIncome:
		if in.ParentID != nil {
			return nil, shared.Validationf("parent_id", "income categories are flat")
		}
		category, err := s.repo.InsertIncomeCategory(ctx, IncomeCategory{Name: strings.TrimSpace(in.Name)})
		if err != nil {
			return nil, err
		}
		s.record(ctx, actor, "category.create", "income_category", category.ID, nil)
		return category, nil
	default:
		return nil, shared.Validationf("type", "must be expense or income")
	}
}

// ReparentExpenseCategory moves a category under a new parent. The ancestor
// chain of the new parent must not contain the category itself.
func (s *Service) ReparentExpenseCategory(ctx context.Context, actor shared.Actor, id int64, parentID *int64) error {
	if !actor.Privileged() {
		return &shared.AuthorizationError{Rule: "only owner or manager may edit categories"}
	}
	if _, err := s.repo.GetExpenseCategory(ctx, id); err != nil {
		return err
	}
	if parentID != nil {
		if *parentID == id {
			return shared.Validationf("parent_id", "category cannot be its own parent")
		}
		if err := s.checkNoCycle(ctx, id, *parentID); err != nil {
			return err
		}
	}
	if err := s.repo.UpdateExpenseCategoryParent(ctx, id, parentID); err != nil {
		return err
	}
	s.record(ctx, actor, "category.reparent", "expense_category", id, map[string]any{"parent_id": parentID})
	return nil
}

// checkNoCycle walks ancestors from the proposed parent and fails if the walk
// reaches the category being moved or exceeds the depth guard.
func (s *Service) checkNoCycle(ctx context.Context, id, parentID int64) error {
	current := parentID
	for depth := 0; depth < maxCategoryDepth; depth++ {
		ancestor, err := s.repo.GetExpenseCategory(ctx, current)
		if err != nil {
			return err
		}
		if ancestor.ID == id {
			return shared.Validationf("parent_id", "would create a cycle")
		}
		if ancestor.ParentID == nil {
			return nil
		}
		current = *ancestor.ParentID
	}
	return shared.Validationf("parent_id", "ancestor chain exceeds %d levels", maxCategoryDepth)
}

// ResolveCategory checks that (id, categoryType) references exactly one
// existing category record.
func (s *Service) ResolveCategory(ctx context.Context, id int64, categoryType CategoryType) error {
	switch categoryType {
	case CategoryExpense:
		_, err := s.repo.GetExpenseCategory(ctx, id)
		return err
	case CategoryIncome:
		_, err := s.repo.GetIncomeCategory(ctx, id)
		return err
	default:
		return shared.Validationf("category_type", "must be expense or income")
	}
}

// RootExpenseCategory resolves the tree root for a category, used by the
// aggregation engine's rollup.
func (s *Service) RootExpenseCategory(ctx context.Context, id int64) (ExpenseCategory, error) {
	category, err := s.repo.GetExpenseCategory(ctx, id)
	if err != nil {
		return ExpenseCategory{}, err
	}
	for depth := 0; depth < maxCategoryDepth; depth++ {
		if category.ParentID == nil {
			return category, nil
		}
		category, err = s.repo.GetExpenseCategory(ctx, *category.ParentID)
		if err != nil {
			return ExpenseCategory{}, err
		}
	}
	return ExpenseCategory{}, fmt.Errorf("catalog: category %d ancestor chain too deep", id)
}

func (s *Service) ListPaymentMethods(ctx context.Context) ([]PaymentMethod, error) {
	return s.repo.ListPaymentMethods(ctx)
}

func (s *Service) GetPaymentMethod(ctx context.Context, id int64) (PaymentMethod, error) {
	return s.repo.GetPaymentMethod(ctx, id)
}

// CreatePaymentMethod registers a payment method; the linked account must
// exist and be active.
func (s *Service) CreatePaymentMethod(ctx context.Context, actor shared.Actor, in CreatePaymentMethodRequest) (PaymentMethod, error) {
	if !actor.Privileged() {
		return PaymentMethod{}, &shared.AuthorizationError{Rule: "only owner or manager may create payment methods"}
	}
	if strings.TrimSpace(in.Name) == "" {
		return PaymentMethod{}, shared.Validationf("name", "required")
	}
	if in.CommissionPercent < 0 || in.CommissionPercent > 100 {
		return PaymentMethod{}, shared.Validationf("commission_percent", "must be between 0 and 100")
	}
	account, err := s.repo.GetAccount(ctx, in.AccountID)
	if err != nil {
		return PaymentMethod{}, err
	}
	if !account.IsActive {
		return PaymentMethod{}, shared.Validationf("account_id", "account is archived")
	}
	method, err := s.repo.InsertPaymentMethod(ctx, PaymentMethod{
		Name:              strings.TrimSpace(in.Name),
		CommissionPercent: in.CommissionPercent,
		AccountID:         in.AccountID,
	})
	if err != nil {
		return PaymentMethod{}, err
	}
	s.record(ctx, actor, "payment_method.create", "payment_method", method.ID, nil)
	return method, nil
}

// UpdatePaymentMethod patches a payment method; a new linked account must
// exist and be active.
func (s *Service) UpdatePaymentMethod(ctx context.Context, actor shared.Actor, id int64, in UpdatePaymentMethodRequest) (PaymentMethod, error) {
	if !actor.Privileged() {
		return PaymentMethod{}, &shared.AuthorizationError{Rule: "only owner or manager may edit payment methods"}
	}
	method, err := s.repo.GetPaymentMethod(ctx, id)
	if err != nil {
		return PaymentMethod{}, err
	}
	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return PaymentMethod{}, shared.Validationf("name", "required")
		}
		method.Name = strings.TrimSpace(*in.Name)
	}
	if in.CommissionPercent != nil {
		if *in.CommissionPercent < 0 || *in.CommissionPercent > 100 {
			return PaymentMethod{}, shared.Validationf("commission_percent", "must be between 0 and 100")
		}
		method.CommissionPercent = *in.CommissionPercent
	}
	if in.AccountID != nil {
		account, err := s.repo.GetAccount(ctx, *in.AccountID)
		if err != nil {
			return PaymentMethod{}, err
		}
		if !account.IsActive {
			return PaymentMethod{}, shared.Validationf("account_id", "account is archived")
		}
		method.AccountID = *in.AccountID
	}
	if in.IsActive != nil {
		method.IsActive = *in.IsActive
	}
	if err := s.repo.UpdatePaymentMethod(ctx, method); err != nil {
		return PaymentMethod{}, err
	}
	s.record(ctx, actor, "payment_method.update", "payment_method", method.ID, nil)
	return method, nil
}

func (s *Service) ListLocations(ctx context.Context) ([]Location, error) {
	return s.repo.ListLocations(ctx)
}

// CreateLocation registers a sales location.
func (s *Service) CreateLocation(ctx context.Context, actor shared.Actor, in CreateLocationRequest) (Location, error) {
	if !actor.Privileged() {
		return Location{}, &shared.AuthorizationError{Rule: "only owner or manager may create locations"}
	}
	if strings.TrimSpace(in.Name) == "" {
		return Location{}, shared.Validationf("name", "required")
	}
	location, err := s.repo.InsertLocation(ctx, Location{
		Name:    strings.TrimSpace(in.Name),
		Address: strings.TrimSpace(in.Address),
	})
	if err != nil {
		return Location{}, err
	}
	s.record(ctx, actor, "location.create", "location", location.ID, nil)
	return location, nil
}

func (s *Service) GetLocation(ctx context.Context, id int64) (Location, error) {
	return s.repo.GetLocation(ctx, id)
}

func (s *Service) GetUser(ctx context.Context, id int64) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// ResolveUser maps the upstream identity to a catalog user, creating a
// cashier record on first sight, mirroring first-contact registration.
func (s *Service) ResolveUser(ctx context.Context, externalID int64, username, fullName string) (User, error) {
	user, err := s.repo.GetUserByExternalID(ctx, externalID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return User{}, err
	}
	return s.repo.InsertUser(ctx, User{
		ExternalID: externalID,
		Username:   username,
		FullName:   fullName,
		Role:       shared.RoleCashier,
	})
}

func (s *Service) ListBlocks(ctx context.Context) ([]AnalyticBlock, error) {
	return s.repo.ListBlocks(ctx)
}

// CreateBlock registers an analytic block and its category memberships.
func (s *Service) CreateBlock(ctx context.Context, actor shared.Actor, in CreateBlockRequest) (AnalyticBlock, error) {
	if !actor.Privileged() {
		return AnalyticBlock{}, &shared.AuthorizationError{Rule: "only owner or manager may create analytic blocks"}
	}
	if strings.TrimSpace(in.Code) == "" {
		return AnalyticBlock{}, shared.Validationf("code", "required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return AnalyticBlock{}, shared.Validationf("name", "required")
	}
	for _, categoryID := range in.CategoryIDs {
		if _, err := s.repo.GetExpenseCategory(ctx, categoryID); err != nil {
			return AnalyticBlock{}, err
		}
	}
	block, err := s.repo.InsertBlock(ctx, AnalyticBlock{
		Code:         strings.TrimSpace(in.Code),
		Name:         strings.TrimSpace(in.Name),
		DisplayOrder: in.DisplayOrder,
		CategoryIDs:  in.CategoryIDs,
	})
	if err != nil {
		return AnalyticBlock{}, err
	}
	s.record(ctx, actor, "block.create", "analytic_block", block.ID, map[string]any{"code": block.Code})
	return block, nil
}

// SetBlockCategories replaces a block's membership set.
func (s *Service) SetBlockCategories(ctx context.Context, actor shared.Actor, blockID int64, categoryIDs []int64) error {
	if !actor.Privileged() {
		return &shared.AuthorizationError{Rule: "only owner or manager may edit analytic blocks"}
	}
	for _, categoryID := range categoryIDs {
		if _, err := s.repo.GetExpenseCategory(ctx, categoryID); err != nil {
			return err
		}
	}
	if err := s.repo.ReplaceBlockCategories(ctx, blockID, categoryIDs); err != nil {
		return err
	}
	s.record(ctx, actor, "block.set_categories", "analytic_block", blockID, map[string]any{"category_ids": categoryIDs})
	return nil
}

func (s *Service) record(ctx context.Context, actor shared.Actor, action, entity string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.UserID,
		Action:   action,
		Entity:   entity,
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
	})
}
