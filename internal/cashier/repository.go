package cashier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/air-waffle/finance/internal/platform/db"
	"github.com/air-waffle/finance/internal/shared"
)

// Repository encapsulates DB operations for cashier reports.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetReport(ctx context.Context, id int64) (Report, error)
	ListReports(ctx context.Context, locationID *int64, limit, offset int) ([]Report, error)
	GetLines(ctx context.Context, reportID int64) ([]ReportLine, error)
	GetPayments(ctx context.Context, reportID int64) ([]ReportPayment, error)
	// LedgerTotals sums timeline income and expense for the report's day and
	// location, the independently derived side of reconciliation.
	LedgerTotals(ctx context.Context, date time.Time, locationID int64) (income, expense float64, err error)
	// LedgerPaymentTotals sums timeline amounts per payment method for the
	// report's day and location.
	LedgerPaymentTotals(ctx context.Context, date time.Time, locationID int64) (map[int64]float64, error)
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	InsertReport(ctx context.Context, r Report) (Report, error)
	GetReportForUpdate(ctx context.Context, id int64) (Report, error)
	UpdateReportFields(ctx context.Context, r Report) error
	// UpdateStatus performs a compare-and-swap on status; it reports whether
	// the swap happened.
	UpdateStatus(ctx context.Context, id int64, from, to ReportStatus) (bool, error)
	InsertLine(ctx context.Context, line ReportLine) (ReportLine, error)
	DeleteLine(ctx context.Context, reportID, lineID int64, lineType LineType) error
	InsertPayment(ctx context.Context, payment ReportPayment) (ReportPayment, error)
	DeletePayment(ctx context.Context, reportID, paymentID int64) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository builds the pgx-backed cashier repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const reportColumns = `id, report_date, location_id, created_by, opening_balance, closing_balance, total_income, total_expenses, COALESCE(notes,''), status, created_at, updated_at`

func scanReport(row pgx.Row) (Report, error) {
	var r Report
	err := row.Scan(&r.ID, &r.ReportDate, &r.LocationID, &r.CreatedBy, &r.OpeningBalance, &r.ClosingBalance,
		&r.TotalIncome, &r.TotalExpenses, &r.Notes, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *repository) GetReport(ctx context.Context, id int64) (Report, error) {
	report, err := scanReport(r.db.QueryRow(ctx, `SELECT `+reportColumns+` FROM cashier_reports WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Report{}, &shared.NotFoundError{Resource: "cashier report", ID: id}
		}
		return Report{}, err
	}
	return report, nil
}

func (r *repository) ListReports(ctx context.Context, locationID *int64, limit, offset int) ([]Report, error) {
	query := `SELECT ` + reportColumns + ` FROM cashier_reports`
	var args []any
	if locationID != nil {
		query += ` WHERE location_id=$1`
		args = append(args, *locationID)
	}
	query += fmt.Sprintf(` ORDER BY report_date DESC LIMIT %d OFFSET %d`, shared.ClampLimit(limit), shared.ClampOffset(offset))
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var reports []Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

func (r *repository) GetLines(ctx context.Context, reportID int64) ([]ReportLine, error) {
	rows, err := r.db.Query(ctx, `SELECT id, report_id, 'income', category_id, amount, COALESCE(notes,'') FROM cashier_report_income WHERE report_id=$1
UNION ALL
SELECT id, report_id, 'expense', category_id, amount, COALESCE(notes,'') FROM cashier_report_expenses WHERE report_id=$1
ORDER BY 3, 1`, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []ReportLine
	for rows.Next() {
		var line ReportLine
		if err := rows.Scan(&line.ID, &line.ReportID, &line.Type, &line.CategoryID, &line.Amount, &line.Notes); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (r *repository) GetPayments(ctx context.Context, reportID int64) ([]ReportPayment, error) {
	rows, err := r.db.Query(ctx, `SELECT id, report_id, payment_method_id, amount FROM cashier_report_payments WHERE report_id=$1 ORDER BY id`, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var payments []ReportPayment
	for rows.Next() {
		var p ReportPayment
		if err := rows.Scan(&p.ID, &p.ReportID, &p.PaymentMethodID, &p.Amount); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (r *repository) LedgerTotals(ctx context.Context, date time.Time, locationID int64) (float64, float64, error) {
	var income, expense float64
	err := r.db.QueryRow(ctx, `SELECT
COALESCE(SUM(amount) FILTER (WHERE type='income'), 0),
COALESCE(SUM(amount) FILTER (WHERE type='expense'), 0)
FROM timeline WHERE date=$1 AND location_id=$2`, date, locationID).Scan(&income, &expense)
	if err != nil {
		return 0, 0, err
	}
	return income, expense, nil
}

func (r *repository) LedgerPaymentTotals(ctx context.Context, date time.Time, locationID int64) (map[int64]float64, error) {
	rows, err := r.db.Query(ctx, `SELECT payment_method_id, COALESCE(SUM(amount),0)
FROM timeline WHERE date=$1 AND location_id=$2 AND payment_method_id IS NOT NULL AND type IN ('income','expense')
GROUP BY payment_method_id`, date, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	totals := make(map[int64]float64)
	for rows.Next() {
		var methodID int64
		var total float64
		if err := rows.Scan(&methodID, &total); err != nil {
			return nil, err
		}
		totals[methodID] = total
	}
	return totals, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) InsertReport(ctx context.Context, report Report) (Report, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO cashier_reports (report_date, location_id, created_by, opening_balance, closing_balance, total_income, total_expenses, notes, status)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,'draft') RETURNING id, created_at, updated_at`,
		report.ReportDate, report.LocationID, report.CreatedBy, toNumeric(report.OpeningBalance), toNumeric(report.ClosingBalance),
		toNumeric(report.TotalIncome), toNumeric(report.TotalExpenses), nullString(report.Notes))
	if err := row.Scan(&report.ID, &report.CreatedAt, &report.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Report{}, &shared.ConflictError{
				Resource: "cashier report",
				Detail:   fmt.Sprintf("report for %s at location %d already exists", report.ReportDate.Format("2006-01-02"), report.LocationID),
			}
		}
		return Report{}, err
	}
	report.Status = StatusDraft
	return report, nil
}

func (r *txRepository) GetReportForUpdate(ctx context.Context, id int64) (Report, error) {
	report, err := scanReport(r.tx.QueryRow(ctx, `SELECT `+reportColumns+` FROM cashier_reports WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Report{}, &shared.NotFoundError{Resource: "cashier report", ID: id}
		}
		return Report{}, err
	}
	return report, nil
}

func (r *txRepository) UpdateReportFields(ctx context.Context, report Report) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE cashier_reports SET opening_balance=$2, closing_balance=$3, total_income=$4, total_expenses=$5, notes=$6, updated_at=NOW() WHERE id=$1`,
		report.ID, toNumeric(report.OpeningBalance), toNumeric(report.ClosingBalance), toNumeric(report.TotalIncome), toNumeric(report.TotalExpenses), nullString(report.Notes))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return &shared.NotFoundError{Resource: "cashier report", ID: report.ID}
	}
	return nil
}

func (r *txRepository) UpdateStatus(ctx context.Context, id int64, from, to ReportStatus) (bool, error) {
	cmd, err := r.tx.Exec(ctx, `UPDATE cashier_reports SET status=$3, updated_at=NOW() WHERE id=$1 AND status=$2`, id, from, to)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *txRepository) InsertLine(ctx context.Context, line ReportLine) (ReportLine, error) {
	table := "cashier_report_income"
	if line.Type == LineExpense {
		table = "cashier_report_expenses"
	}
	err := r.tx.QueryRow(ctx, `INSERT INTO `+table+` (report_id, category_id, amount, notes) VALUES ($1,$2,$3,$4) RETURNING id`,
		line.ReportID, line.CategoryID, toNumeric(line.Amount), nullString(line.Notes)).Scan(&line.ID)
	if err != nil {
		return ReportLine{}, err
	}
	return line, nil
}

func (r *txRepository) DeleteLine(ctx context.Context, reportID, lineID int64, lineType LineType) error {
	table := "cashier_report_income"
	if lineType == LineExpense {
		table = "cashier_report_expenses"
	}
	cmd, err := r.tx.Exec(ctx, `DELETE FROM `+table+` WHERE id=$1 AND report_id=$2`, lineID, reportID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return &shared.NotFoundError{Resource: "report line", ID: lineID}
	}
	return nil
}

func (r *txRepository) InsertPayment(ctx context.Context, payment ReportPayment) (ReportPayment, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO cashier_report_payments (report_id, payment_method_id, amount) VALUES ($1,$2,$3) RETURNING id`,
		payment.ReportID, payment.PaymentMethodID, toNumeric(payment.Amount)).Scan(&payment.ID)
	if err != nil {
		return ReportPayment{}, err
	}
	return payment, nil
}

func (r *txRepository) DeletePayment(ctx context.Context, reportID, paymentID int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM cashier_report_payments WHERE id=$1 AND report_id=$2`, paymentID, reportID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return &shared.NotFoundError{Resource: "report payment", ID: paymentID}
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
