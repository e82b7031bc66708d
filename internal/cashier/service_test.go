package cashier

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/air-waffle/finance/internal/catalog"
	"github.com/air-waffle/finance/internal/shared"
)

type memoryRepo struct {
	reports       map[int64]Report
	lines         map[int64][]ReportLine
	payments      map[int64][]ReportPayment
	ledgerIncome  float64
	ledgerExpense float64
	ledgerByPM    map[int64]float64
	nextID        int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		reports:    make(map[int64]Report),
		lines:      make(map[int64][]ReportLine),
		payments:   make(map[int64][]ReportPayment),
		ledgerByPM: make(map[int64]float64),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetReport(ctx context.Context, id int64) (Report, error) {
	if report, ok := r.reports[id]; ok {
		return report, nil
	}
	return Report{}, &shared.NotFoundError{Resource: "cashier report", ID: id}
}

func (r *memoryRepo) ListReports(ctx context.Context, locationID *int64, limit, offset int) ([]Report, error) {
	var reports []Report
	for _, report := range r.reports {
		if locationID != nil && report.LocationID != *locationID {
			continue
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func (r *memoryRepo) GetLines(ctx context.Context, reportID int64) ([]ReportLine, error) {
	return r.lines[reportID], nil
}

func (r *memoryRepo) GetPayments(ctx context.Context, reportID int64) ([]ReportPayment, error) {
	return r.payments[reportID], nil
}

func (r *memoryRepo) LedgerTotals(ctx context.Context, date time.Time, locationID int64) (float64, float64, error) {
	return r.ledgerIncome, r.ledgerExpense, nil
}

func (r *memoryRepo) LedgerPaymentTotals(ctx context.Context, date time.Time, locationID int64) (map[int64]float64, error) {
	return r.ledgerByPM, nil
}

func (tx *memoryTx) InsertReport(ctx context.Context, report Report) (Report, error) {
	for _, existing := range tx.repo.reports {
		if existing.ReportDate.Equal(report.ReportDate) && existing.LocationID == report.LocationID {
			return Report{}, &shared.ConflictError{Resource: "cashier report", Detail: "duplicate"}
		}
	}
	tx.repo.nextID++
	report.ID = tx.repo.nextID
	report.Status = StatusDraft
	tx.repo.reports[report.ID] = report
	return report, nil
}

func (tx *memoryTx) GetReportForUpdate(ctx context.Context, id int64) (Report, error) {
	return tx.repo.GetReport(ctx, id)
}

func (tx *memoryTx) UpdateReportFields(ctx context.Context, report Report) error {
	if _, ok := tx.repo.reports[report.ID]; !ok {
		return &shared.NotFoundError{Resource: "cashier report", ID: report.ID}
	}
	tx.repo.reports[report.ID] = report
	return nil
}

func (tx *memoryTx) UpdateStatus(ctx context.Context, id int64, from, to ReportStatus) (bool, error) {
	report, ok := tx.repo.reports[id]
	if !ok || report.Status != from {
		return false, nil
	}
	report.Status = to
	tx.repo.reports[id] = report
	return true, nil
}

func (tx *memoryTx) InsertLine(ctx context.Context, line ReportLine) (ReportLine, error) {
	tx.repo.nextID++
	line.ID = tx.repo.nextID
	tx.repo.lines[line.ReportID] = append(tx.repo.lines[line.ReportID], line)
	return line, nil
}

func (tx *memoryTx) DeleteLine(ctx context.Context, reportID, lineID int64, lineType LineType) error {
	lines := tx.repo.lines[reportID]
	for i, line := range lines {
		if line.ID == lineID && line.Type == lineType {
			tx.repo.lines[reportID] = append(lines[:i], lines[i+1:]...)
			return nil
		}
	}
	return &shared.NotFoundError{Resource: "report line", ID: lineID}
}

func (tx *memoryTx) InsertPayment(ctx context.Context, payment ReportPayment) (ReportPayment, error) {
	tx.repo.nextID++
	payment.ID = tx.repo.nextID
	tx.repo.payments[payment.ReportID] = append(tx.repo.payments[payment.ReportID], payment)
	return payment, nil
}

func (tx *memoryTx) DeletePayment(ctx context.Context, reportID, paymentID int64) error {
	payments := tx.repo.payments[reportID]
	for i, payment := range payments {
		if payment.ID == paymentID {
			tx.repo.payments[reportID] = append(payments[:i], payments[i+1:]...)
			return nil
		}
	}
	return &shared.NotFoundError{Resource: "report payment", ID: paymentID}
}

type stubCatalog struct{}

func (stubCatalog) ResolveCategory(ctx context.Context, id int64, categoryType catalog.CategoryType) error {
	return nil
}

func (stubCatalog) GetPaymentMethod(ctx context.Context, id int64) (catalog.PaymentMethod, error) {
	return catalog.PaymentMethod{ID: id}, nil
}

func (stubCatalog) GetLocation(ctx context.Context, id int64) (catalog.Location, error) {
	return catalog.Location{ID: id}, nil
}

var (
	cashierActor = shared.Actor{UserID: 7, Role: shared.RoleCashier}
	managerActor = shared.Actor{UserID: 2, Role: shared.RoleManager}
)

func fixture() (*Service, *memoryRepo) {
	repo := newMemoryRepo()
	return NewService(repo, stubCatalog{}, nil), repo
}

func draftReport(t *testing.T, svc *Service) Report {
	t.Helper()
	report, err := svc.CreateReport(context.Background(), cashierActor, CreateReportRequest{
		Date: "2026-03-01", LocationID: 1,
		OpeningBalance: 100, ClosingBalance: 300,
		TotalIncome: 250, TotalExpenses: 50,
	})
	require.NoError(t, err)
	return report
}

func TestCreateReportDuplicateConflicts(t *testing.T) {
	svc, _ := fixture()
	draftReport(t, svc)

	_, err := svc.CreateReport(context.Background(), cashierActor, CreateReportRequest{
		Date: "2026-03-01", LocationID: 1,
	})
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestSubmitThenApprove(t *testing.T) {
	svc, repo := fixture()
	repo.ledgerIncome = 250
	repo.ledgerExpense = 50
	report := draftReport(t, svc)
	ctx := context.Background()

	detail, err := svc.Submit(ctx, cashierActor, report.ID, false)
	require.NoError(t, err)
	require.Equal(t, StatusSubmitted, detail.Report.Status)
	require.Empty(t, detail.Warnings)

	approved, err := svc.Approve(ctx, managerActor, report.ID)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, approved.Status)
}

func TestApproveRequiresPrivilege(t *testing.T) {
	svc, _ := fixture()
	report := draftReport(t, svc)
	ctx := context.Background()

	_, err := svc.Submit(ctx, cashierActor, report.ID, false)
	require.NoError(t, err)

	_, err = svc.Approve(ctx, cashierActor, report.ID)
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestDoubleApproveRejected(t *testing.T) {
	svc, _ := fixture()
	report := draftReport(t, svc)
	ctx := context.Background()

	_, err := svc.Submit(ctx, cashierActor, report.ID, false)
	require.NoError(t, err)
	_, err = svc.Approve(ctx, managerActor, report.ID)
	require.NoError(t, err)

	_, err = svc.Approve(ctx, managerActor, report.ID)
	require.ErrorIs(t, err, shared.ErrState)
}

func TestApproveDraftRejected(t *testing.T) {
	svc, _ := fixture()
	report := draftReport(t, svc)

	_, err := svc.Approve(context.Background(), managerActor, report.ID)
	require.ErrorIs(t, err, shared.ErrState)
}

func TestRevertReopensDraft(t *testing.T) {
	svc, _ := fixture()
	report := draftReport(t, svc)
	ctx := context.Background()

	_, err := svc.Submit(ctx, cashierActor, report.ID, false)
	require.NoError(t, err)

	reverted, err := svc.Revert(ctx, managerActor, report.ID, "totals corrected")
	require.NoError(t, err)
	require.Equal(t, StatusDraft, reverted.Status)

	// Editable again after revert.
	_, err = svc.UpdateReport(ctx, cashierActor, report.ID, UpdateReportRequest{})
	require.NoError(t, err)
}

func TestRevertApprovedRejected(t *testing.T) {
	svc, _ := fixture()
	report := draftReport(t, svc)
	ctx := context.Background()

	_, err := svc.Submit(ctx, cashierActor, report.ID, false)
	require.NoError(t, err)
	_, err = svc.Approve(ctx, managerActor, report.ID)
	require.NoError(t, err)

	// Approved is terminal: not even a privileged role may reopen it.
	_, err = svc.Revert(ctx, managerActor, report.ID, "late correction")
	require.ErrorIs(t, err, shared.ErrState)

	current, err := svc.Get(ctx, report.ID)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, current.Report.Status)
}

func TestSubmittedReportNotEditable(t *testing.T) {
	svc, _ := fixture()
	report := draftReport(t, svc)
	ctx := context.Background()

	_, err := svc.Submit(ctx, cashierActor, report.ID, false)
	require.NoError(t, err)

	_, err = svc.UpdateReport(ctx, cashierActor, report.ID, UpdateReportRequest{})
	require.ErrorIs(t, err, shared.ErrState)

	_, err = svc.AddLine(ctx, cashierActor, report.ID, LineRequest{Type: "income", CategoryID: 1, Amount: 10})
	require.ErrorIs(t, err, shared.ErrState)
}

func TestReconcileFlagsMismatches(t *testing.T) {
	svc, repo := fixture()
	report := draftReport(t, svc)
	ctx := context.Background()

	// Report claims 250 income / 50 expense but the timeline saw 300 / 80.
	repo.ledgerIncome = 300
	repo.ledgerExpense = 80

	_, err := svc.AddLine(ctx, cashierActor, report.ID, LineRequest{Type: "income", CategoryID: 1, Amount: 200})
	require.NoError(t, err)

	warnings, err := svc.Reconcile(ctx, report.ID)
	require.NoError(t, err)

	codes := make(map[string]bool)
	for _, warning := range warnings {
		codes[warning.Code] = true
	}
	require.True(t, codes[WarnLineTotalIncome], "income lines sum 200 != 250")
	require.True(t, codes[WarnLedgerIncome])
	require.True(t, codes[WarnLedgerExpense])
	require.False(t, codes[WarnBalanceEquation], "100 + 250 - 50 == 300")
}

func TestReconcileBalanceEquation(t *testing.T) {
	svc, repo := fixture()
	repo.ledgerIncome = 250
	repo.ledgerExpense = 50
	ctx := context.Background()

	report, err := svc.CreateReport(ctx, cashierActor, CreateReportRequest{
		Date: "2026-03-02", LocationID: 1,
		OpeningBalance: 100, ClosingBalance: 999,
		TotalIncome: 250, TotalExpenses: 50,
	})
	require.NoError(t, err)

	warnings, err := svc.Reconcile(ctx, report.ID)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	require.Equal(t, WarnBalanceEquation, warnings[0].Code)
	require.InDelta(t, 300.0, warnings[0].Expected, 0.001)
}

func TestReconcilePaymentSplit(t *testing.T) {
	svc, repo := fixture()
	repo.ledgerIncome = 250
	repo.ledgerExpense = 50
	repo.ledgerByPM = map[int64]float64{10: 180}
	report := draftReport(t, svc)
	ctx := context.Background()

	_, err := svc.AddPayment(ctx, cashierActor, report.ID, PaymentRequest{PaymentMethodID: 10, Amount: 200})
	require.NoError(t, err)

	warnings, err := svc.Reconcile(ctx, report.ID)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	require.Equal(t, WarnPaymentMethod, warnings[0].Code)
	require.InDelta(t, 180.0, warnings[0].Expected, 0.001)
}

func TestStrictSubmitRejectsWarnings(t *testing.T) {
	svc, repo := fixture()
	repo.ledgerIncome = 300
	repo.ledgerExpense = 50
	report := draftReport(t, svc)
	ctx := context.Background()

	_, err := svc.Submit(ctx, cashierActor, report.ID, true)
	require.ErrorIs(t, err, shared.ErrValidation)

	// The report stays in draft.
	current, err := svc.Get(ctx, report.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, current.Report.Status)
}
