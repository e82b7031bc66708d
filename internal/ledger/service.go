package ledger

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/air-waffle/finance/internal/catalog"
	"github.com/air-waffle/finance/internal/shared"
)

// Commission handling for income events. The original schema carries a
// commission rate on payment methods without applying it; the mode makes the
// choice explicit instead of guessing.
const (
	CommissionNone         = "none"
	CommissionReduceCredit = "reduce_credit"
)

// Overdraft guard modes. deny_cash rejects mutations that would drive a
// cash-kind account below zero.
const (
	OverdraftAllow    = "allow"
	OverdraftDenyCash = "deny_cash"
)

// ServiceConfig controls balance application behavior.
type ServiceConfig struct {
	CommissionMode string
	Overdraft      string
}

// CatalogPort is the slice of the catalog the ledger depends on.
type CatalogPort interface {
	ResolveCategory(ctx context.Context, id int64, categoryType catalog.CategoryType) error
	GetPaymentMethod(ctx context.Context, id int64) (catalog.PaymentMethod, error)
	GetAccount(ctx context.Context, id int64) (catalog.Account, error)
	GetLocation(ctx context.Context, id int64) (catalog.Location, error)
}

// AuditPort records ledger mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// InvalidationPort notifies downstream caches that aggregates went stale.
type InvalidationPort interface {
	Bump(ctx context.Context) error
}

// Service is the ledger store plus the balance maintainer. Every mutation
// runs its store write and balance write inside one repository transaction.
type Service struct {
	repo    Repository
	catalog CatalogPort
	audit   AuditPort
	invalid InvalidationPort
	cfg     ServiceConfig
}

// NewService wires the ledger service.
func NewService(repo Repository, catalogPort CatalogPort, audit AuditPort, invalid InvalidationPort, cfg ServiceConfig) *Service {
	if cfg.CommissionMode == "" {
		cfg.CommissionMode = CommissionNone
	}
	if cfg.Overdraft == "" {
		cfg.Overdraft = OverdraftAllow
	}
	return &Service{repo: repo, catalog: catalogPort, audit: audit, invalid: invalid, cfg: cfg}
}

// RecordEvent validates and persists a timeline event and applies its balance
// effect atomically. Returns the stored event.
func (s *Service) RecordEvent(ctx context.Context, actor shared.Actor, in CreateEventRequest) (Event, error) {
	event, err := s.buildEvent(ctx, in, actor.UserID)
	if err != nil {
		return Event{}, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inserted, err := tx.InsertEvent(ctx, event)
		if err != nil {
			return err
		}
		if err := s.applyEffects(ctx, tx, inserted.Effects()); err != nil {
			return err
		}
		event = inserted
		return nil
	})
	if err != nil {
		return Event{}, err
	}
	s.record(ctx, actor, "event.record", event.ID, map[string]any{"type": string(event.Type), "amount": event.Amount})
	s.bump(ctx)
	return event, nil
}

// UpdateEvent merges the patch, re-validates the result as if newly created,
// and swaps the balance effect: reverse the stored effect, apply the new one,
// all in the same transaction as the row update.
func (s *Service) UpdateEvent(ctx context.Context, actor shared.Actor, id int64, patch UpdateEventRequest) (Event, error) {
	var updated Event
	var override bool
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEventForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.CreatedBy != actor.UserID && !actor.Privileged() {
			return &shared.AuthorizationError{Rule: "only the event creator or a privileged role may edit"}
		}
		override = current.CreatedBy != actor.UserID

		merged, err := s.mergePatch(ctx, current, patch)
		if err != nil {
			return err
		}
		if err := s.applyEffects(ctx, tx, current.ReverseEffects()); err != nil {
			return err
		}
		if err := s.applyEffects(ctx, tx, merged.Effects()); err != nil {
			return err
		}
		if err := tx.UpdateEvent(ctx, merged); err != nil {
			return err
		}
		updated = merged
		return nil
	})
	if err != nil {
		return Event{}, err
	}
	s.record(ctx, actor, "event.update", id, map[string]any{"override": override})
	s.bump(ctx)
	return updated, nil
}

// DeleteEvent removes the event and reverses its stored effect exactly.
func (s *Service) DeleteEvent(ctx context.Context, actor shared.Actor, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEventForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.CreatedBy != actor.UserID && !actor.Privileged() {
			return &shared.AuthorizationError{Rule: "only the event creator or a privileged role may delete"}
		}
		if err := s.applyEffects(ctx, tx, current.ReverseEffects()); err != nil {
			return err
		}
		return tx.DeleteEvent(ctx, id)
	})
	if err != nil {
		return err
	}
	s.record(ctx, actor, "event.delete", id, nil)
	s.bump(ctx)
	return nil
}

// GetEvent returns one event.
func (s *Service) GetEvent(ctx context.Context, id int64) (Event, error) {
	return s.repo.GetEvent(ctx, id)
}

// Query returns a time-ordered filtered view of the timeline.
func (s *Service) Query(ctx context.Context, filter Filter) ([]EventView, error) {
	return s.repo.Query(ctx, filter)
}

// RecomputeBalances rebuilds every account balance from initial_balance plus
// a full scan of the timeline and reports drift against the cached value.
func (s *Service) RecomputeBalances(ctx context.Context) ([]BalanceReport, error) {
	reports, err := s.repo.ListAccountBalances(ctx)
	if err != nil {
		return nil, err
	}
	events, err := s.repo.AllEvents(ctx)
	if err != nil {
		return nil, err
	}
	sums := make(map[int64]float64, len(reports))
	for _, event := range events {
		for _, effect := range event.Effects() {
			sums[effect.AccountID] += effect.Delta
		}
	}
	for i := range reports {
		reports[i].Computed = roundCents(reports[i].InitialBalance + sums[reports[i].AccountID])
		reports[i].Drift = roundCents(reports[i].Stored - reports[i].Computed)
	}
	return reports, nil
}

// HealBalances rewrites drifted balances with the recomputed value and
// returns the accounts that were corrected.
func (s *Service) HealBalances(ctx context.Context) ([]BalanceReport, error) {
	reports, err := s.RecomputeBalances(ctx)
	if err != nil {
		return nil, err
	}
	var healed []BalanceReport
	for _, report := range reports {
		if report.Drift == 0 {
			continue
		}
		if err := s.repo.SetAccountBalance(ctx, report.AccountID, report.Computed); err != nil {
			return healed, err
		}
		healed = append(healed, report)
	}
	if len(healed) > 0 {
		s.bump(ctx)
	}
	return healed, nil
}

// buildEvent validates a create request and resolves its settlement account
// and credited amount.
func (s *Service) buildEvent(ctx context.Context, in CreateEventRequest, createdBy int64) (Event, error) {
	date, err := time.Parse("2006-01-02", in.Date)
	if err != nil {
		return Event{}, shared.Validationf("date", "must be YYYY-MM-DD")
	}
	if in.Amount <= 0 {
		return Event{}, shared.Validationf("amount", "must be positive")
	}
	if in.LocationID != nil {
		if _, err := s.catalog.GetLocation(ctx, *in.LocationID); err != nil {
			return Event{}, err
		}
	}

	event := Event{
		Date:        date,
		Type:        EventType(in.Type),
		Amount:      in.Amount,
		Description: in.Description,
		LocationID:  in.LocationID,
		CreatedBy:   createdBy,
	}

	switch event.Type {
	case TypeExpense, TypeIncome:
		if in.FromAccountID != nil || in.ToAccountID != nil {
			return Event{}, shared.Validationf("from_account_id", "transfer accounts are only valid for transfers")
		}
		if in.CategoryID == nil {
			return Event{}, shared.Validationf("category_id", "required")
		}
		categoryType := catalog.CategoryType(event.Type)
		if err := s.catalog.ResolveCategory(ctx, *in.CategoryID, categoryType); err != nil {
			return Event{}, err
		}
		if in.PaymentMethodID == nil {
			return Event{}, shared.Validationf("payment_method_id", "required")
		}
		method, err := s.catalog.GetPaymentMethod(ctx, *in.PaymentMethodID)
		if err != nil {
			return Event{}, err
		}
		settlement, err := s.catalog.GetAccount(ctx, method.AccountID)
		if err != nil {
			return Event{}, err
		}
		if !settlement.IsActive {
			return Event{}, shared.Validationf("payment_method_id", "settlement account %d is archived", settlement.ID)
		}
		event.CategoryID = in.CategoryID
		event.CategoryType = &categoryType
		event.PaymentMethodID = in.PaymentMethodID
		event.AccountID = &method.AccountID
		event.CreditedAmount = s.creditedAmount(event.Type, in.Amount, method)
	case TypeTransfer:
		if in.CategoryID != nil || in.PaymentMethodID != nil {
			return Event{}, shared.Validationf("category_id", "category fields are only valid for expense and income")
		}
		if in.FromAccountID == nil {
			return Event{}, shared.Validationf("from_account_id", "required")
		}
		if in.ToAccountID == nil {
			return Event{}, shared.Validationf("to_account_id", "required")
		}
		if *in.FromAccountID == *in.ToAccountID {
			return Event{}, shared.Validationf("to_account_id", "cannot transfer to the same account")
		}
		from, err := s.catalog.GetAccount(ctx, *in.FromAccountID)
		if err != nil {
			return Event{}, err
		}
		if !from.IsActive {
			return Event{}, shared.Validationf("from_account_id", "account %d is archived", from.ID)
		}
		to, err := s.catalog.GetAccount(ctx, *in.ToAccountID)
		if err != nil {
			return Event{}, err
		}
		if !to.IsActive {
			return Event{}, shared.Validationf("to_account_id", "account %d is archived", to.ID)
		}
		event.FromAccountID = in.FromAccountID
		event.ToAccountID = in.ToAccountID
		event.CreditedAmount = in.Amount
	default:
		return Event{}, shared.Validationf("type", "must be expense, income or transfer")
	}
	return event, nil
}

// mergePatch overlays the patch on the current event and re-runs full
// validation through buildEvent.
func (s *Service) mergePatch(ctx context.Context, current Event, patch UpdateEventRequest) (Event, error) {
	req := CreateEventRequest{
		Date:            current.Date.Format("2006-01-02"),
		Type:            string(current.Type),
		CategoryID:      current.CategoryID,
		Amount:          current.Amount,
		PaymentMethodID: current.PaymentMethodID,
		FromAccountID:   current.FromAccountID,
		ToAccountID:     current.ToAccountID,
		Description:     current.Description,
		LocationID:      current.LocationID,
	}
	if patch.Date != nil {
		req.Date = *patch.Date
	}
	if patch.CategoryID != nil {
		req.CategoryID = patch.CategoryID
	}
	if patch.Amount != nil {
		req.Amount = *patch.Amount
	}
	if patch.PaymentMethodID != nil {
		req.PaymentMethodID = patch.PaymentMethodID
	}
	if patch.FromAccountID != nil {
		req.FromAccountID = patch.FromAccountID
	}
	if patch.ToAccountID != nil {
		req.ToAccountID = patch.ToAccountID
	}
	if patch.Description != nil {
		req.Description = *patch.Description
	}
	if patch.LocationID != nil {
		req.LocationID = patch.LocationID
	}
	merged, err := s.buildEvent(ctx, req, current.CreatedBy)
	if err != nil {
		return Event{}, err
	}
	merged.ID = current.ID
	merged.CreatedAt = current.CreatedAt
	return merged, nil
}

// creditedAmount applies the commission rate to incoming money when enabled.
// Commission never increases the debited side.
func (s *Service) creditedAmount(eventType EventType, amount float64, method catalog.PaymentMethod) float64 {
	if eventType != TypeIncome || s.cfg.CommissionMode != CommissionReduceCredit || method.CommissionPercent <= 0 {
		return amount
	}
	return roundCents(amount * (1 - method.CommissionPercent/100))
}

// applyEffects locks each touched account and applies the delta, enforcing
// the overdraft guard for cash accounts when configured.
func (s *Service) applyEffects(ctx context.Context, tx TxRepository, effects []BalanceEffect) error {
	for _, effect := range effects {
		state, err := tx.GetAccountForUpdate(ctx, effect.AccountID)
		if err != nil {
			return err
		}
		if s.cfg.Overdraft == OverdraftDenyCash && state.Kind == catalog.AccountCash && roundCents(state.Balance+effect.Delta) < 0 {
			return shared.Validationf("amount", "insufficient funds: account %d has %.2f", effect.AccountID, state.Balance)
		}
		if err := tx.AdjustBalance(ctx, effect.AccountID, effect.Delta); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) record(ctx context.Context, actor shared.Actor, action string, eventID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.UserID,
		Action:   action,
		Entity:   "timeline_event",
		EntityID: fmt.Sprintf("%d", eventID),
		Meta:     meta,
	})
}

func (s *Service) bump(ctx context.Context) {
	if s.invalid == nil {
		return
	}
	_ = s.invalid.Bump(ctx)
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
