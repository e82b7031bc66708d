package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/air-waffle/finance/internal/platform/db"
	"github.com/air-waffle/finance/internal/shared"
)

// Repository encapsulates DB operations for the catalog tables.
type Repository interface {
	ListAccounts(ctx context.Context, activeOnly bool) ([]Account, error)
	GetAccount(ctx context.Context, id int64) (Account, error)
	InsertAccount(ctx context.Context, a Account) (Account, error)
	UpdateAccount(ctx context.Context, a Account) error

	ListExpenseCategories(ctx context.Context) ([]ExpenseCategory, error)
	GetExpenseCategory(ctx context.Context, id int64) (ExpenseCategory, error)
	InsertExpenseCategory(ctx context.Context, c ExpenseCategory) (ExpenseCategory, error)
	UpdateExpenseCategoryParent(ctx context.Context, id int64, parentID *int64) error

	ListIncomeCategories(ctx context.Context) ([]IncomeCategory, error)
	GetIncomeCategory(ctx context.Context, id int64) (IncomeCategory, error)
	InsertIncomeCategory(ctx context.Context, c IncomeCategory) (IncomeCategory, error)

	ListPaymentMethods(ctx context.Context) ([]PaymentMethod, error)
	GetPaymentMethod(ctx context.Context, id int64) (PaymentMethod, error)
	InsertPaymentMethod(ctx context.Context, m PaymentMethod) (PaymentMethod, error)
	UpdatePaymentMethod(ctx context.Context, m PaymentMethod) error

	ListLocations(ctx context.Context) ([]Location, error)
	GetLocation(ctx context.Context, id int64) (Location, error)
	InsertLocation(ctx context.Context, l Location) (Location, error)

	GetUser(ctx context.Context, id int64) (User, error)
	GetUserByExternalID(ctx context.Context, externalID int64) (User, error)
	InsertUser(ctx context.Context, u User) (User, error)

	ListBlocks(ctx context.Context) ([]AnalyticBlock, error)
	InsertBlock(ctx context.Context, b AnalyticBlock) (AnalyticBlock, error)
	ReplaceBlockCategories(ctx context.Context, blockID int64, categoryIDs []int64) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository builds the pgx-backed catalog repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) ListAccounts(ctx context.Context, activeOnly bool) ([]Account, error) {
	query := `SELECT id, name, kind, currency, initial_balance, current_balance, is_active, created_at, updated_at FROM accounts`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY name`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.Name, &a.Kind, &a.Currency, &a.InitialBalance, &a.CurrentBalance, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *repository) GetAccount(ctx context.Context, id int64) (Account, error) {
	var a Account
	err := r.db.QueryRow(ctx, `SELECT id, name, kind, currency, initial_balance, current_balance, is_active, created_at, updated_at FROM accounts WHERE id=$1`, id).
		Scan(&a.ID, &a.Name, &a.Kind, &a.Currency, &a.InitialBalance, &a.CurrentBalance, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, &shared.NotFoundError{Resource: "account", ID: id}
		}
		return Account{}, err
	}
	return a, nil
}

func (r *repository) InsertAccount(ctx context.Context, a Account) (Account, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO accounts (name, kind, currency, initial_balance, current_balance, is_active)
VALUES ($1,$2,$3,$4,$4,TRUE) RETURNING id, created_at, updated_at`, a.Name, a.Kind, a.Currency, a.InitialBalance).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return Account{}, mapConstraint(err, "account", a.Name)
	}
	a.CurrentBalance = a.InitialBalance
	a.IsActive = true
	return a, nil
}

func (r *repository) UpdateAccount(ctx context.Context, a Account) error {
	cmd, err := r.db.Exec(ctx, `UPDATE accounts SET name=$2, is_active=$3, updated_at=NOW() WHERE id=$1`, a.ID, a.Name, a.IsActive)
	if err != nil {
		return mapConstraint(err, "account", a.Name)
	}
	if cmd.RowsAffected() == 0 {
		return &shared.NotFoundError{Resource: "account", ID: a.ID}
	}
	return nil
}

func (r *repository) ListExpenseCategories(ctx context.Context) ([]ExpenseCategory, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, parent_id, is_active, created_at FROM expense_categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var cats []ExpenseCategory
	for rows.Next() {
		var c ExpenseCategory
		if err := rows.Scan(&c.ID, &c.Name, &c.ParentID, &c.IsActive, &c.CreatedAt); err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

func (r *repository) GetExpenseCategory(ctx context.Context, id int64) (ExpenseCategory, error) {
	var c ExpenseCategory
	err := r.db.QueryRow(ctx, `SELECT id, name, parent_id, is_active, created_at FROM expense_categories WHERE id=$1`, id).
		Scan(&c.ID, &c.Name, &c.ParentID, &c.IsActive, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ExpenseCategory{}, &shared.NotFoundError{Resource: "expense category", ID: id}
		}
		return ExpenseCategory{}, err
	}
	return c, nil
}

func (r *repository) InsertExpenseCategory(ctx context.Context, c ExpenseCategory) (ExpenseCategory, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO expense_categories (name, parent_id, is_active) VALUES ($1,$2,TRUE) RETURNING id, created_at`,
		c.Name, c.ParentID).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return ExpenseCategory{}, mapConstraint(err, "expense category", c.Name)
	}
	c.IsActive = true
	return c, nil
}

func (r *repository) UpdateExpenseCategoryParent(ctx context.Context, id int64, parentID *int64) error {
	cmd, err := r.db.Exec(ctx, `UPDATE expense_categories SET parent_id=$2 WHERE id=$1`, id, parentID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return &shared.NotFoundError{Resource: "expense category", ID: id}
	}
	return nil
}

func (r *repository) ListIncomeCategories(ctx context.Context) ([]IncomeCategory, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, is_active, created_at FROM income_categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var cats []IncomeCategory
	for rows.Next() {
		var c IncomeCategory
		if err := rows.Scan(&c.ID, &c.Name, &c.IsActive, &c.CreatedAt); err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

func (r *repository) GetIncomeCategory(ctx context.Context, id int64) (IncomeCategory, error) {
	var c IncomeCategory
	err := r.db.QueryRow(ctx, `SELECT id, name, is_active, created_at FROM income_categories WHERE id=$1`, id).
		Scan(&c.ID, &c.Name, &c.IsActive, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return IncomeCategory{}, &shared.NotFoundError{Resource: "income category", ID: id}
		}
		return IncomeCategory{}, err
	}
	return c, nil
}

func (r *repository) InsertIncomeCategory(ctx context.Context, c IncomeCategory) (IncomeCategory, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO income_categories (name, is_active) VALUES ($1,TRUE) RETURNING id, created_at`,
		c.Name).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return IncomeCategory{}, mapConstraint(err, "income category", c.Name)
	}
	c.IsActive = true
	return c, nil
}

func (r *repository) ListPaymentMethods(ctx context.Context) ([]PaymentMethod, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, commission_percent, account_id, is_active, created_at FROM payment_methods ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var methods []PaymentMethod
	for rows.Next() {
		var m PaymentMethod
		if err := rows.Scan(&m.ID, &m.Name, &m.CommissionPercent, &m.AccountID, &m.IsActive, &m.CreatedAt); err != nil {
			return nil, err
		}
		methods = append(methods, m)
	}
	return methods, rows.Err()
}

func (r *repository) GetPaymentMethod(ctx context.Context, id int64) (PaymentMethod, error) {
	var m PaymentMethod
	err := r.db.QueryRow(ctx, `SELECT id, name, commission_percent, account_id, is_active, created_at FROM payment_methods WHERE id=$1`, id).
		Scan(&m.ID, &m.Name, &m.CommissionPercent, &m.AccountID, &m.IsActive, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PaymentMethod{}, &shared.NotFoundError{Resource: "payment method", ID: id}
		}
		return PaymentMethod{}, err
	}
	return m, nil
}

func (r *repository) InsertPaymentMethod(ctx context.Context, m PaymentMethod) (PaymentMethod, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO payment_methods (name, commission_percent, account_id, is_active) VALUES ($1,$2,$3,TRUE) RETURNING id, created_at`,
		m.Name, m.CommissionPercent, m.AccountID).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return PaymentMethod{}, mapConstraint(err, "payment method", m.Name)
	}
	m.IsActive = true
	return m, nil
}

func (r *repository) UpdatePaymentMethod(ctx context.Context, m PaymentMethod) error {
	cmd, err := r.db.Exec(ctx, `UPDATE payment_methods SET name=$2, commission_percent=$3, account_id=$4, is_active=$5 WHERE id=$1`,
		m.ID, m.Name, m.CommissionPercent, m.AccountID, m.IsActive)
	if err != nil {
		return mapConstraint(err, "payment method", m.Name)
	}
	if cmd.RowsAffected() == 0 {
		return &shared.NotFoundError{Resource: "payment method", ID: m.ID}
	}
	return nil
}

func (r *repository) ListLocations(ctx context.Context) ([]Location, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, COALESCE(address,''), is_active, created_at FROM locations ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var locations []Location
	for rows.Next() {
		var l Location
		if err := rows.Scan(&l.ID, &l.Name, &l.Address, &l.IsActive, &l.CreatedAt); err != nil {
			return nil, err
		}
		locations = append(locations, l)
	}
	return locations, rows.Err()
}

func (r *repository) GetLocation(ctx context.Context, id int64) (Location, error) {
	var l Location
	err := r.db.QueryRow(ctx, `SELECT id, name, COALESCE(address,''), is_active, created_at FROM locations WHERE id=$1`, id).
		Scan(&l.ID, &l.Name, &l.Address, &l.IsActive, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Location{}, &shared.NotFoundError{Resource: "location", ID: id}
		}
		return Location{}, err
	}
	return l, nil
}

func (r *repository) InsertLocation(ctx context.Context, l Location) (Location, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO locations (name, address, is_active) VALUES ($1,$2,TRUE) RETURNING id, created_at`,
		l.Name, nullString(l.Address)).Scan(&l.ID, &l.CreatedAt)
	if err != nil {
		return Location{}, mapConstraint(err, "location", l.Name)
	}
	l.IsActive = true
	return l, nil
}

func (r *repository) GetUser(ctx context.Context, id int64) (User, error) {
	var u User
	err := r.db.QueryRow(ctx, `SELECT id, external_id, COALESCE(username,''), full_name, role, is_active, created_at FROM users WHERE id=$1`, id).
		Scan(&u.ID, &u.ExternalID, &u.Username, &u.FullName, &u.Role, &u.IsActive, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, &shared.NotFoundError{Resource: "user", ID: id}
		}
		return User{}, err
	}
	return u, nil
}

func (r *repository) GetUserByExternalID(ctx context.Context, externalID int64) (User, error) {
	var u User
	err := r.db.QueryRow(ctx, `SELECT id, external_id, COALESCE(username,''), full_name, role, is_active, created_at FROM users WHERE external_id=$1`, externalID).
		Scan(&u.ID, &u.ExternalID, &u.Username, &u.FullName, &u.Role, &u.IsActive, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, &shared.NotFoundError{Resource: "user", ID: externalID}
		}
		return User{}, err
	}
	return u, nil
}

func (r *repository) InsertUser(ctx context.Context, u User) (User, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO users (external_id, username, full_name, role, is_active) VALUES ($1,$2,$3,$4,TRUE) RETURNING id, created_at`,
		u.ExternalID, u.Username, u.FullName, u.Role).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		return User{}, mapConstraint(err, "user", u.Username)
	}
	u.IsActive = true
	return u, nil
}

func (r *repository) ListBlocks(ctx context.Context) ([]AnalyticBlock, error) {
	rows, err := r.db.Query(ctx, `SELECT b.id, b.code, b.name, b.display_order, b.is_active, b.created_at,
COALESCE(array_agg(bc.category_id) FILTER (WHERE bc.category_id IS NOT NULL), '{}')
FROM analytic_blocks b
LEFT JOIN analytic_block_categories bc ON bc.block_id = b.id
GROUP BY b.id
ORDER BY b.display_order, b.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var blocks []AnalyticBlock
	for rows.Next() {
		var b AnalyticBlock
		if err := rows.Scan(&b.ID, &b.Code, &b.Name, &b.DisplayOrder, &b.IsActive, &b.CreatedAt, &b.CategoryIDs); err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}

// InsertBlock writes the block row and its category memberships in one
// transaction so a partial failure never leaves an empty block behind.
func (r *repository) InsertBlock(ctx context.Context, b AnalyticBlock) (AnalyticBlock, error) {
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `INSERT INTO analytic_blocks (code, name, display_order, is_active) VALUES ($1,$2,$3,TRUE) RETURNING id, created_at`,
			b.Code, b.Name, b.DisplayOrder).Scan(&b.ID, &b.CreatedAt)
		if err != nil {
			return mapConstraint(err, "analytic block", b.Code)
		}
		for _, categoryID := range b.CategoryIDs {
			if _, err := tx.Exec(ctx, `INSERT INTO analytic_block_categories (block_id, category_id) VALUES ($1,$2)`, b.ID, categoryID); err != nil {
				return mapConstraint(err, "analytic block category", "")
			}
		}
		return nil
	})
	if err != nil {
		return AnalyticBlock{}, err
	}
	b.IsActive = true
	return b, nil
}

func (r *repository) ReplaceBlockCategories(ctx context.Context, blockID int64, categoryIDs []int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if _, err := tx.Exec(ctx, `DELETE FROM analytic_block_categories WHERE block_id=$1`, blockID); err != nil {
		return err
	}
	for _, categoryID := range categoryIDs {
		if _, err := tx.Exec(ctx, `INSERT INTO analytic_block_categories (block_id, category_id) VALUES ($1,$2)`, blockID, categoryID); err != nil {
			return mapConstraint(err, "analytic block category", "")
		}
	}
	return tx.Commit(ctx)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// mapConstraint turns postgres unique violations into ConflictError and
// foreign key violations into ValidationError.
func mapConstraint(err error, resource, detail string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return &shared.ConflictError{Resource: resource, Detail: detail}
		case "23503":
			return shared.Validationf(pgErr.ConstraintName, "unknown reference")
		}
	}
	return err
}
