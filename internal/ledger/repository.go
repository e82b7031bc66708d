package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/air-waffle/finance/internal/catalog"
	"github.com/air-waffle/finance/internal/platform/db"
	"github.com/air-waffle/finance/internal/shared"
)

// Repository encapsulates DB operations for the timeline.
type Repository interface {
	// WithTx runs fn in one transaction; the store write and its balance
	// effect always travel together through this boundary.
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetEvent(ctx context.Context, id int64) (Event, error)
	Query(ctx context.Context, filter Filter) ([]EventView, error)
	AllEvents(ctx context.Context) ([]Event, error)
	ListAccountBalances(ctx context.Context) ([]BalanceReport, error)
	SetAccountBalance(ctx context.Context, accountID int64, balance float64) error
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	InsertEvent(ctx context.Context, e Event) (Event, error)
	GetEventForUpdate(ctx context.Context, id int64) (Event, error)
	UpdateEvent(ctx context.Context, e Event) error
	DeleteEvent(ctx context.Context, id int64) error
	GetAccountForUpdate(ctx context.Context, id int64) (AccountState, error)
	AdjustBalance(ctx context.Context, accountID int64, delta float64) error
}

// AccountState is the slice of an account a balance write needs.
type AccountState struct {
	ID      int64
	Kind    catalog.AccountKind
	Balance float64
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository builds the pgx-backed timeline repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const eventColumns = `id, date, type, category_id, category_type, account_id, from_account_id, to_account_id, amount, credited_amount, COALESCE(description,''), payment_method_id, location_id, created_by, created_at, updated_at`

func scanEvent(row pgx.Row) (Event, error) {
	var e Event
	err := row.Scan(&e.ID, &e.Date, &e.Type, &e.CategoryID, &e.CategoryType, &e.AccountID, &e.FromAccountID, &e.ToAccountID,
		&e.Amount, &e.CreditedAmount, &e.Description, &e.PaymentMethodID, &e.LocationID, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *repository) GetEvent(ctx context.Context, id int64) (Event, error) {
	e, err := scanEvent(r.db.QueryRow(ctx, `SELECT `+eventColumns+` FROM timeline WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Event{}, &shared.NotFoundError{Resource: "event", ID: id}
		}
		return Event{}, err
	}
	return e, nil
}

func (r *repository) Query(ctx context.Context, filter Filter) ([]EventView, error) {
	query := `SELECT t.id, t.date, t.type, t.category_id, t.category_type, t.account_id, t.from_account_id, t.to_account_id,
t.amount, t.credited_amount, COALESCE(t.description,''), t.payment_method_id, t.location_id, t.created_by, t.created_at, t.updated_at,
COALESCE(ec.name, ic.name, ''), COALESCE(pm.name,''), COALESCE(l.name,''), COALESCE(fa.name,''), COALESCE(ta.name,''), COALESCE(u.full_name,'')
FROM timeline t
LEFT JOIN expense_categories ec ON t.category_type='expense' AND t.category_id = ec.id
LEFT JOIN income_categories ic ON t.category_type='income' AND t.category_id = ic.id
LEFT JOIN payment_methods pm ON t.payment_method_id = pm.id
LEFT JOIN locations l ON t.location_id = l.id
LEFT JOIN accounts fa ON t.from_account_id = fa.id
LEFT JOIN accounts ta ON t.to_account_id = ta.id
LEFT JOIN users u ON t.created_by = u.id
WHERE 1=1`

	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if filter.DateFrom != nil {
		query += ` AND t.date >= ` + arg(*filter.DateFrom)
	}
	if filter.DateTo != nil {
		query += ` AND t.date <= ` + arg(*filter.DateTo)
	}
	if filter.Type != nil {
		query += ` AND t.type = ` + arg(*filter.Type)
	}
	if filter.CategoryID != nil {
		query += ` AND t.category_id = ` + arg(*filter.CategoryID)
	}
	if filter.AccountID != nil {
		id := arg(*filter.AccountID)
		query += ` AND (t.account_id = ` + id + ` OR t.from_account_id = ` + id + ` OR t.to_account_id = ` + id + `)`
	}
	if filter.LocationID != nil {
		query += ` AND t.location_id = ` + arg(*filter.LocationID)
	}
	query += ` ORDER BY t.date DESC, t.created_at DESC LIMIT ` + arg(shared.ClampLimit(filter.Limit)) + ` OFFSET ` + arg(shared.ClampOffset(filter.Offset))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var events []EventView
	for rows.Next() {
		var v EventView
		if err := rows.Scan(&v.ID, &v.Date, &v.Type, &v.CategoryID, &v.CategoryType, &v.AccountID, &v.FromAccountID, &v.ToAccountID,
			&v.Amount, &v.CreditedAmount, &v.Description, &v.PaymentMethodID, &v.LocationID, &v.CreatedBy, &v.CreatedAt, &v.UpdatedAt,
			&v.CategoryName, &v.PaymentMethodName, &v.LocationName, &v.FromAccountName, &v.ToAccountName, &v.CreatedByName); err != nil {
			return nil, err
		}
		events = append(events, v)
	}
	return events, rows.Err()
}

func (r *repository) AllEvents(ctx context.Context) ([]Event, error) {
	rows, err := r.db.Query(ctx, `SELECT `+eventColumns+` FROM timeline ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var events []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *repository) ListAccountBalances(ctx context.Context) ([]BalanceReport, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, initial_balance, current_balance FROM accounts ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var reports []BalanceReport
	for rows.Next() {
		var b BalanceReport
		if err := rows.Scan(&b.AccountID, &b.Name, &b.InitialBalance, &b.Stored); err != nil {
			return nil, err
		}
		reports = append(reports, b)
	}
	return reports, rows.Err()
}

func (r *repository) SetAccountBalance(ctx context.Context, accountID int64, balance float64) error {
	cmd, err := r.db.Exec(ctx, `UPDATE accounts SET current_balance=$2, updated_at=NOW() WHERE id=$1`, accountID, toNumeric(balance))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return &shared.NotFoundError{Resource: "account", ID: accountID}
	}
	return nil
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) InsertEvent(ctx context.Context, e Event) (Event, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO timeline (date, type, category_id, category_type, account_id, from_account_id, to_account_id, amount, credited_amount, payment_method_id, description, location_id, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13) RETURNING id, created_at, updated_at`,
		e.Date, e.Type, e.CategoryID, e.CategoryType, e.AccountID, e.FromAccountID, e.ToAccountID,
		toNumeric(e.Amount), toNumeric(e.CreditedAmount), e.PaymentMethodID, nullString(e.Description), e.LocationID, e.CreatedBy)
	if err := row.Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return Event{}, err
	}
	return e, nil
}

func (r *txRepository) GetEventForUpdate(ctx context.Context, id int64) (Event, error) {
	e, err := scanEvent(r.tx.QueryRow(ctx, `SELECT `+eventColumns+` FROM timeline WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Event{}, &shared.NotFoundError{Resource: "event", ID: id}
		}
		return Event{}, err
	}
	return e, nil
}

func (r *txRepository) UpdateEvent(ctx context.Context, e Event) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE timeline SET date=$2, type=$3, category_id=$4, category_type=$5, account_id=$6, from_account_id=$7, to_account_id=$8, amount=$9, credited_amount=$10, payment_method_id=$11, description=$12, location_id=$13, updated_at=NOW() WHERE id=$1`,
		e.ID, e.Date, e.Type, e.CategoryID, e.CategoryType, e.AccountID, e.FromAccountID, e.ToAccountID,
		toNumeric(e.Amount), toNumeric(e.CreditedAmount), e.PaymentMethodID, nullString(e.Description), e.LocationID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return &shared.NotFoundError{Resource: "event", ID: e.ID}
	}
	return nil
}

func (r *txRepository) DeleteEvent(ctx context.Context, id int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM timeline WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return &shared.NotFoundError{Resource: "event", ID: id}
	}
	return nil
}

// GetAccountForUpdate locks the account row so concurrent balance writes
// against the same account serialize. Archived accounts are not filtered
// out here: reversing a stored effect must succeed even after the account
// is archived. New events are gated on is_active during validation.
func (r *txRepository) GetAccountForUpdate(ctx context.Context, id int64) (AccountState, error) {
	var s AccountState
	err := r.tx.QueryRow(ctx, `SELECT id, kind, current_balance FROM accounts WHERE id=$1 FOR UPDATE`, id).
		Scan(&s.ID, &s.Kind, &s.Balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccountState{}, &shared.NotFoundError{Resource: "account", ID: id}
		}
		return AccountState{}, err
	}
	return s, nil
}

func (r *txRepository) AdjustBalance(ctx context.Context, accountID int64, delta float64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE accounts SET current_balance = current_balance + $2, updated_at=NOW() WHERE id=$1`,
		accountID, toNumeric(delta))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return &shared.NotFoundError{Resource: "account", ID: accountID}
	}
	return nil
}

// Helpers

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func toNumeric(v float64) any {
	return fmt.Sprintf("%.2f", v)
}
