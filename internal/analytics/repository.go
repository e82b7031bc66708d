package analytics

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository runs read-only aggregation queries over the timeline.
type Repository interface {
	Totals(ctx context.Context, r Range) (income, expense float64, err error)
	BlockTotals(ctx context.Context, r Range) ([]BlockAmount, error)
	AccountBalances(ctx context.Context) ([]AccountBalance, error)
	CategoryTotals(ctx context.Context, r Range, eventType string) ([]CategoryShare, error)
	PivotRows(ctx context.Context, r Range, granularity Granularity) ([]PivotRow, error)
	TrendRows(ctx context.Context, r Range, granularity Granularity) ([]TrendPoint, error)
	CellDetails(ctx context.Context, r Range, period string, granularity Granularity, eventType string, categoryID int64) ([]CellDetail, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository builds the pgx-backed analytics repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func periodFormat(granularity Granularity) string {
	if granularity == ByMonth {
		return "YYYY-MM"
	}
	return "YYYY-MM-DD"
}

// rangeWhere builds the common date-and-location predicate on alias t,
// appending to args.
func rangeWhere(r Range, args []any) (string, []any) {
	args = append(args, r.From, r.To)
	clause := fmt.Sprintf("t.date >= $%d AND t.date <= $%d", len(args)-1, len(args))
	if r.LocationID != nil {
		args = append(args, *r.LocationID)
		clause += fmt.Sprintf(" AND t.location_id = $%d", len(args))
	}
	return clause, args
}

func (r *repository) Totals(ctx context.Context, rg Range) (float64, float64, error) {
	where, args := rangeWhere(rg, nil)
	var income, expense float64
	err := r.db.QueryRow(ctx, `SELECT
COALESCE(SUM(t.amount) FILTER (WHERE t.type='income'), 0),
COALESCE(SUM(t.amount) FILTER (WHERE t.type='expense'), 0)
FROM timeline t WHERE `+where, args...).Scan(&income, &expense)
	if err != nil {
		return 0, 0, err
	}
	return income, expense, nil
}

func (r *repository) BlockTotals(ctx context.Context, rg Range) ([]BlockAmount, error) {
	where, args := rangeWhere(rg, nil)
	rows, err := r.db.Query(ctx, `SELECT b.id, b.code, b.name, COALESCE(SUM(t.amount), 0)
FROM analytic_blocks b
LEFT JOIN analytic_block_categories bc ON bc.block_id = b.id
LEFT JOIN timeline t ON t.category_id = bc.category_id AND t.category_type = 'expense' AND t.type = 'expense' AND `+where+`
GROUP BY b.id, b.code, b.name
ORDER BY b.id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var blocks []BlockAmount
	for rows.Next() {
		var block BlockAmount
		if err := rows.Scan(&block.BlockID, &block.Code, &block.Name, &block.Amount); err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}
	return blocks, rows.Err()
}

func (r *repository) AccountBalances(ctx context.Context) ([]AccountBalance, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, current_balance FROM accounts WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var balances []AccountBalance
	for rows.Next() {
		var balance AccountBalance
		if err := rows.Scan(&balance.AccountID, &balance.Name, &balance.Balance); err != nil {
			return nil, err
		}
		balances = append(balances, balance)
	}
	return balances, rows.Err()
}

func (r *repository) CategoryTotals(ctx context.Context, rg Range, eventType string) ([]CategoryShare, error) {
	where, args := rangeWhere(rg, []any{eventType})
	rows, err := r.db.Query(ctx, `SELECT t.category_id, COALESCE(ec.name, ic.name, ''), SUM(t.amount)
FROM timeline t
LEFT JOIN expense_categories ec ON t.category_type = 'expense' AND ec.id = t.category_id
LEFT JOIN income_categories ic ON t.category_type = 'income' AND ic.id = t.category_id
WHERE t.type = $1 AND `+where+`
GROUP BY 1, 2
ORDER BY 3 DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var shares []CategoryShare
	for rows.Next() {
		var share CategoryShare
		if err := rows.Scan(&share.CategoryID, &share.Name, &share.Amount); err != nil {
			return nil, err
		}
		shares = append(shares, share)
	}
	return shares, rows.Err()
}

func (r *repository) PivotRows(ctx context.Context, rg Range, granularity Granularity) ([]PivotRow, error) {
	where, args := rangeWhere(rg, []any{periodFormat(granularity)})
	rows, err := r.db.Query(ctx, `SELECT to_char(t.date, $1), t.type, t.category_id,
COALESCE(ec.name, ic.name, ''), SUM(t.amount)
FROM timeline t
LEFT JOIN expense_categories ec ON t.category_type = 'expense' AND ec.id = t.category_id
LEFT JOIN income_categories ic ON t.category_type = 'income' AND ic.id = t.category_id
WHERE t.type IN ('income','expense') AND `+where+`
GROUP BY 1, 2, 3, 4
ORDER BY 1, 2, 4`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []PivotRow
	for rows.Next() {
		var row PivotRow
		if err := rows.Scan(&row.Period, &row.Type, &row.CategoryID, &row.CategoryName, &row.Amount); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func (r *repository) TrendRows(ctx context.Context, rg Range, granularity Granularity) ([]TrendPoint, error) {
	where, args := rangeWhere(rg, []any{periodFormat(granularity)})
	rows, err := r.db.Query(ctx, `SELECT to_char(t.date, $1),
COALESCE(SUM(t.amount) FILTER (WHERE t.type='income'), 0),
COALESCE(SUM(t.amount) FILTER (WHERE t.type='expense'), 0)
FROM timeline t
WHERE t.type IN ('income','expense') AND `+where+`
GROUP BY 1
ORDER BY 1`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var points []TrendPoint
	for rows.Next() {
		var point TrendPoint
		if err := rows.Scan(&point.Period, &point.Income, &point.Expense); err != nil {
			return nil, err
		}
		point.Net = point.Income - point.Expense
		points = append(points, point)
	}
	return points, rows.Err()
}

func (r *repository) CellDetails(ctx context.Context, rg Range, period string, granularity Granularity, eventType string, categoryID int64) ([]CellDetail, error) {
	args := []any{periodFormat(granularity), period, eventType, categoryID}
	query := `SELECT t.id, t.date, t.type, t.amount, COALESCE(t.description, ''), COALESCE(a.name, '')
FROM timeline t
LEFT JOIN accounts a ON a.id = t.account_id
WHERE to_char(t.date, $1) = $2 AND t.type = $3 AND t.category_id = $4`
	if rg.LocationID != nil {
		args = append(args, *rg.LocationID)
		query += fmt.Sprintf(" AND t.location_id = $%d", len(args))
	}
	query += ` ORDER BY t.date, t.id`
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var details []CellDetail
	for rows.Next() {
		var d CellDetail
		if err := rows.Scan(&d.ID, &d.Date, &d.Type, &d.Amount, &d.Description, &d.AccountName); err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, rows.Err()
}
