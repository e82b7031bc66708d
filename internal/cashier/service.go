package cashier

import (
	"context"
	"fmt"
	"time"

	"github.com/air-waffle/finance/internal/catalog"
	"github.com/air-waffle/finance/internal/shared"
)

// CatalogPort is the slice of the catalog the cashier module depends on.
type CatalogPort interface {
	ResolveCategory(ctx context.Context, id int64, categoryType catalog.CategoryType) error
	GetPaymentMethod(ctx context.Context, id int64) (catalog.PaymentMethod, error)
	GetLocation(ctx context.Context, id int64) (catalog.Location, error)
}

// AuditPort records report transitions.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service owns the shift report lifecycle and its reconciliation against the
// timeline. The report is a separate record from the timeline and the two are
// only ever compared, never merged.
type Service struct {
	repo    Repository
	catalog CatalogPort
	audit   AuditPort
}

// NewService wires the cashier service.
func NewService(repo Repository, catalogPort CatalogPort, audit AuditPort) *Service {
	return &Service{repo: repo, catalog: catalogPort, audit: audit}
}

// CreateReport opens a draft report. One report per date and location; a
// duplicate surfaces as a conflict from the unique constraint.
func (s *Service) CreateReport(ctx context.Context, actor shared.Actor, in CreateReportRequest) (Report, error) {
	date, err := time.Parse("2006-01-02", in.Date)
	if err != nil {
		return Report{}, shared.Validationf("date", "must be YYYY-MM-DD")
	}
	if _, err := s.catalog.GetLocation(ctx, in.LocationID); err != nil {
		return Report{}, err
	}
	report := Report{
		ReportDate:     date,
		LocationID:     in.LocationID,
		CreatedBy:      actor.UserID,
		OpeningBalance: in.OpeningBalance,
		ClosingBalance: in.ClosingBalance,
		TotalIncome:    in.TotalIncome,
		TotalExpenses:  in.TotalExpenses,
		Notes:          in.Notes,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inserted, err := tx.InsertReport(ctx, report)
		if err != nil {
			return err
		}
		report = inserted
		return nil
	})
	if err != nil {
		return Report{}, err
	}
	s.record(ctx, actor, "report.create", report.ID, nil)
	return report, nil
}

// UpdateReport patches the manual figures of a draft report. Submitted and
// approved reports are immutable through this path.
func (s *Service) UpdateReport(ctx context.Context, actor shared.Actor, id int64, patch UpdateReportRequest) (Report, error) {
	var updated Report
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := s.editableReport(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		if patch.OpeningBalance != nil {
			current.OpeningBalance = *patch.OpeningBalance
		}
		if patch.ClosingBalance != nil {
			current.ClosingBalance = *patch.ClosingBalance
		}
		if patch.TotalIncome != nil {
			current.TotalIncome = *patch.TotalIncome
		}
		if patch.TotalExpenses != nil {
			current.TotalExpenses = *patch.TotalExpenses
		}
		if patch.Notes != nil {
			current.Notes = *patch.Notes
		}
		if err := tx.UpdateReportFields(ctx, current); err != nil {
			return err
		}
		updated = current
		return nil
	})
	if err != nil {
		return Report{}, err
	}
	s.record(ctx, actor, "report.update", id, nil)
	return updated, nil
}

// AddLine appends a category breakdown row to a draft report.
func (s *Service) AddLine(ctx context.Context, actor shared.Actor, reportID int64, in LineRequest) (ReportLine, error) {
	lineType := LineType(in.Type)
	categoryType := catalog.CategoryType(in.Type)
	if err := s.catalog.ResolveCategory(ctx, in.CategoryID, categoryType); err != nil {
		return ReportLine{}, err
	}
	line := ReportLine{
		ReportID:   reportID,
		Type:       lineType,
		CategoryID: in.CategoryID,
		Amount:     in.Amount,
		Notes:      in.Notes,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := s.editableReport(ctx, tx, actor, reportID); err != nil {
			return err
		}
		inserted, err := tx.InsertLine(ctx, line)
		if err != nil {
			return err
		}
		line = inserted
		return nil
	})
	if err != nil {
		return ReportLine{}, err
	}
	return line, nil
}

// RemoveLine deletes a breakdown row from a draft report.
func (s *Service) RemoveLine(ctx context.Context, actor shared.Actor, reportID, lineID int64, lineType LineType) error {
	if lineType != LineIncome && lineType != LineExpense {
		return shared.Validationf("type", "must be income or expense")
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := s.editableReport(ctx, tx, actor, reportID); err != nil {
			return err
		}
		return tx.DeleteLine(ctx, reportID, lineID, lineType)
	})
}

// AddPayment appends a payment-method split row to a draft report.
func (s *Service) AddPayment(ctx context.Context, actor shared.Actor, reportID int64, in PaymentRequest) (ReportPayment, error) {
	if _, err := s.catalog.GetPaymentMethod(ctx, in.PaymentMethodID); err != nil {
		return ReportPayment{}, err
	}
	payment := ReportPayment{
		ReportID:        reportID,
		PaymentMethodID: in.PaymentMethodID,
		Amount:          in.Amount,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := s.editableReport(ctx, tx, actor, reportID); err != nil {
			return err
		}
		inserted, err := tx.InsertPayment(ctx, payment)
		if err != nil {
			return err
		}
		payment = inserted
		return nil
	})
	if err != nil {
		return ReportPayment{}, err
	}
	return payment, nil
}

// RemovePayment deletes a split row from a draft report.
func (s *Service) RemovePayment(ctx context.Context, actor shared.Actor, reportID, paymentID int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := s.editableReport(ctx, tx, actor, reportID); err != nil {
			return err
		}
		return tx.DeletePayment(ctx, reportID, paymentID)
	})
}

// Get returns the report with its rows and a fresh reconciliation.
func (s *Service) Get(ctx context.Context, id int64) (ReportDetail, error) {
	report, err := s.repo.GetReport(ctx, id)
	if err != nil {
		return ReportDetail{}, err
	}
	return s.detail(ctx, report)
}

// List returns reports, newest first, optionally scoped to a location.
func (s *Service) List(ctx context.Context, locationID *int64, limit, offset int) ([]Report, error) {
	return s.repo.ListReports(ctx, locationID, limit, offset)
}

// Submit moves a draft to submitted. Reconciliation always runs; in strict
// mode any warning rejects the submission, otherwise warnings are returned
// alongside the transitioned report.
func (s *Service) Submit(ctx context.Context, actor shared.Actor, id int64, strict bool) (ReportDetail, error) {
	report, err := s.repo.GetReport(ctx, id)
	if err != nil {
		return ReportDetail{}, err
	}
	if report.CreatedBy != actor.UserID && !actor.Privileged() {
		return ReportDetail{}, &shared.AuthorizationError{Rule: "only the report creator or a privileged role may submit"}
	}
	detail, err := s.detail(ctx, report)
	if err != nil {
		return ReportDetail{}, err
	}
	if strict && len(detail.Warnings) > 0 {
		w := detail.Warnings[0]
		return ReportDetail{}, shared.Validationf(w.Field, "%s: expected %.2f, got %.2f", w.Code, w.Expected, w.Actual)
	}
	if err := s.transition(ctx, id, StatusDraft, StatusSubmitted); err != nil {
		return ReportDetail{}, err
	}
	detail.Report.Status = StatusSubmitted
	s.record(ctx, actor, "report.submit", id, map[string]any{"warnings": len(detail.Warnings)})
	return detail, nil
}

// Approve moves a submitted report to approved. Privileged roles only;
// approved is terminal.
func (s *Service) Approve(ctx context.Context, actor shared.Actor, id int64) (Report, error) {
	if !actor.Privileged() {
		return Report{}, &shared.AuthorizationError{Rule: "only owner or manager may approve reports"}
	}
	if err := s.transition(ctx, id, StatusSubmitted, StatusApproved); err != nil {
		return Report{}, err
	}
	s.record(ctx, actor, "report.approve", id, nil)
	return s.repo.GetReport(ctx, id)
}

// Revert moves a submitted report back to draft for correction. Privileged
// roles only; the reversal is audit logged.
func (s *Service) Revert(ctx context.Context, actor shared.Actor, id int64, reason string) (Report, error) {
	if !actor.Privileged() {
		return Report{}, &shared.AuthorizationError{Rule: "only owner or manager may revert reports"}
	}
	if err := s.transition(ctx, id, StatusSubmitted, StatusDraft); err != nil {
		return Report{}, err
	}
	s.record(ctx, actor, "report.revert", id, map[string]any{"reason": reason})
	return s.repo.GetReport(ctx, id)
}

// Reconcile runs the checks without touching status.
func (s *Service) Reconcile(ctx context.Context, id int64) ([]Warning, error) {
	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return detail.Warnings, nil
}

// transition performs the compare-and-swap on status. A lost race or a wrong
// current state both surface as a state error naming the actual status.
func (s *Service) transition(ctx context.Context, id int64, from, to ReportStatus) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		swapped, err := tx.UpdateStatus(ctx, id, from, to)
		if err != nil {
			return err
		}
		if swapped {
			return nil
		}
		current, err := tx.GetReportForUpdate(ctx, id)
		if err != nil {
			return err
		}
		return &shared.StateError{
			From:   string(current.Status),
			To:     string(to),
			Reason: fmt.Sprintf("report must be %s", from),
		}
	})
}

// editableReport locks the report and checks it is a draft owned by the actor
// or touched by a privileged role.
func (s *Service) editableReport(ctx context.Context, tx TxRepository, actor shared.Actor, id int64) (Report, error) {
	report, err := tx.GetReportForUpdate(ctx, id)
	if err != nil {
		return Report{}, err
	}
	if report.CreatedBy != actor.UserID && !actor.Privileged() {
		return Report{}, &shared.AuthorizationError{Rule: "only the report creator or a privileged role may edit"}
	}
	if report.Status != StatusDraft {
		return Report{}, &shared.StateError{From: string(report.Status), To: string(StatusDraft), Reason: "only draft reports are editable"}
	}
	return report, nil
}

func (s *Service) detail(ctx context.Context, report Report) (ReportDetail, error) {
	lines, err := s.repo.GetLines(ctx, report.ID)
	if err != nil {
		return ReportDetail{}, err
	}
	payments, err := s.repo.GetPayments(ctx, report.ID)
	if err != nil {
		return ReportDetail{}, err
	}
	ledgerIncome, ledgerExpense, err := s.repo.LedgerTotals(ctx, report.ReportDate, report.LocationID)
	if err != nil {
		return ReportDetail{}, err
	}
	ledgerPayments, err := s.repo.LedgerPaymentTotals(ctx, report.ReportDate, report.LocationID)
	if err != nil {
		return ReportDetail{}, err
	}
	warnings := reconcile(report, lines, payments, ledgerIncome, ledgerExpense, ledgerPayments)
	if lines == nil {
		lines = []ReportLine{}
	}
	if payments == nil {
		payments = []ReportPayment{}
	}
	return ReportDetail{Report: report, Lines: lines, Payments: payments, Warnings: warnings}, nil
}

func (s *Service) record(ctx context.Context, actor shared.Actor, action string, reportID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.UserID,
		Action:   action,
		Entity:   "cashier_report",
		EntityID: fmt.Sprintf("%d", reportID),
		Meta:     meta,
	})
}
