package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/air-waffle/finance/internal/catalog"
	"github.com/air-waffle/finance/internal/shared"
)

type memoryAccount struct {
	kind    catalog.AccountKind
	initial float64
	balance float64
	name    string
}

type memoryRepo struct {
	accounts map[int64]*memoryAccount
	events   map[int64]Event
	nextID   int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{accounts: make(map[int64]*memoryAccount), events: make(map[int64]Event)}
}

func (r *memoryRepo) addAccount(id int64, kind catalog.AccountKind, initial float64) {
	r.accounts[id] = &memoryAccount{kind: kind, initial: initial, balance: initial}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetEvent(ctx context.Context, id int64) (Event, error) {
	if e, ok := r.events[id]; ok {
		return e, nil
	}
	return Event{}, &shared.NotFoundError{Resource: "timeline event", ID: id}
}

func (r *memoryRepo) Query(ctx context.Context, filter Filter) ([]EventView, error) {
	var views []EventView
	for _, e := range r.events {
		views = append(views, EventView{Event: e})
	}
	return views, nil
}

func (r *memoryRepo) AllEvents(ctx context.Context) ([]Event, error) {
	var events []Event
	for _, e := range r.events {
		events = append(events, e)
	}
	return events, nil
}

func (r *memoryRepo) ListAccountBalances(ctx context.Context) ([]BalanceReport, error) {
	var reports []BalanceReport
	for id, account := range r.accounts {
		reports = append(reports, BalanceReport{
			AccountID:      id,
			Name:           account.name,
			InitialBalance: account.initial,
			Stored:         account.balance,
		})
	}
	return reports, nil
}

func (r *memoryRepo) SetAccountBalance(ctx context.Context, accountID int64, balance float64) error {
	r.accounts[accountID].balance = balance
	return nil
}

func (tx *memoryTx) InsertEvent(ctx context.Context, e Event) (Event, error) {
	tx.repo.nextID++
	e.ID = tx.repo.nextID
	tx.repo.events[e.ID] = e
	return e, nil
}

func (tx *memoryTx) GetEventForUpdate(ctx context.Context, id int64) (Event, error) {
	return tx.repo.GetEvent(ctx, id)
}

func (tx *memoryTx) UpdateEvent(ctx context.Context, e Event) error {
	if _, ok := tx.repo.events[e.ID]; !ok {
		return &shared.NotFoundError{Resource: "timeline event", ID: e.ID}
	}
	tx.repo.events[e.ID] = e
	return nil
}

func (tx *memoryTx) DeleteEvent(ctx context.Context, id int64) error {
	if _, ok := tx.repo.events[id]; !ok {
		return &shared.NotFoundError{Resource: "timeline event", ID: id}
	}
	delete(tx.repo.events, id)
	return nil
}

func (tx *memoryTx) GetAccountForUpdate(ctx context.Context, id int64) (AccountState, error) {
	account, ok := tx.repo.accounts[id]
	if !ok {
		return AccountState{}, &shared.NotFoundError{Resource: "account", ID: id}
	}
	return AccountState{ID: id, Kind: account.kind, Balance: account.balance}, nil
}

func (tx *memoryTx) AdjustBalance(ctx context.Context, accountID int64, delta float64) error {
	tx.repo.accounts[accountID].balance += delta
	return nil
}

type memoryCatalog struct {
	methods   map[int64]catalog.PaymentMethod
	accounts  map[int64]catalog.Account
	locations map[int64]catalog.Location
}

func newMemoryCatalog() *memoryCatalog {
	return &memoryCatalog{
		methods:   make(map[int64]catalog.PaymentMethod),
		accounts:  make(map[int64]catalog.Account),
		locations: make(map[int64]catalog.Location),
	}
}

func (c *memoryCatalog) ResolveCategory(ctx context.Context, id int64, categoryType catalog.CategoryType) error {
	return nil
}

func (c *memoryCatalog) GetPaymentMethod(ctx context.Context, id int64) (catalog.PaymentMethod, error) {
	if m, ok := c.methods[id]; ok {
		return m, nil
	}
	return catalog.PaymentMethod{}, &shared.NotFoundError{Resource: "payment method", ID: id}
}

func (c *memoryCatalog) GetAccount(ctx context.Context, id int64) (catalog.Account, error) {
	if a, ok := c.accounts[id]; ok {
		return a, nil
	}
	return catalog.Account{}, &shared.NotFoundError{Resource: "account", ID: id}
}

func (c *memoryCatalog) GetLocation(ctx context.Context, id int64) (catalog.Location, error) {
	if l, ok := c.locations[id]; ok {
		return l, nil
	}
	return catalog.Location{}, &shared.NotFoundError{Resource: "location", ID: id}
}

func ptr[T any](v T) *T { return &v }

func fixtureWithCatalog(cfg ServiceConfig) (*Service, *memoryRepo, *memoryCatalog) {
	repo := newMemoryRepo()
	repo.addAccount(1, catalog.AccountCash, 1000)
	repo.addAccount(2, catalog.AccountBank, 5000)

	cat := newMemoryCatalog()
	cat.accounts[1] = catalog.Account{ID: 1, Kind: catalog.AccountCash, IsActive: true}
	cat.accounts[2] = catalog.Account{ID: 2, Kind: catalog.AccountBank, IsActive: true}
	cat.methods[10] = catalog.PaymentMethod{ID: 10, Name: "Cash", AccountID: 1}
	cat.methods[11] = catalog.PaymentMethod{ID: 11, Name: "Card", CommissionPercent: 2, AccountID: 2}
	cat.locations[1] = catalog.Location{ID: 1, Name: "Main"}

	return NewService(repo, cat, nil, nil, cfg), repo, cat
}

func fixture(cfg ServiceConfig) (*Service, *memoryRepo) {
	svc, repo, _ := fixtureWithCatalog(cfg)
	return svc, repo
}

var cashierActor = shared.Actor{UserID: 7, Role: shared.RoleCashier}
var ownerActor = shared.Actor{UserID: 1, Role: shared.RoleOwner}

func TestRecordIncomeCreditsAccount(t *testing.T) {
	svc, repo := fixture(ServiceConfig{})
	ctx := context.Background()

	event, err := svc.RecordEvent(ctx, cashierActor, CreateEventRequest{
		Date: "2026-03-01", Type: "income", CategoryID: ptr[int64](1), Amount: 250, PaymentMethodID: ptr[int64](10),
	})
	require.NoError(t, err)
	require.NotZero(t, event.ID)
	require.Equal(t, int64(1), *event.AccountID)
	require.InDelta(t, 250.0, event.CreditedAmount, 0.001)
	require.InDelta(t, 1250.0, repo.accounts[1].balance, 0.001)
}

func TestRecordExpenseDebitsAccount(t *testing.T) {
	svc, repo := fixture(ServiceConfig{})
	ctx := context.Background()

	_, err := svc.RecordEvent(ctx, cashierActor, CreateEventRequest{
		Date: "2026-03-01", Type: "expense", CategoryID: ptr[int64](2), Amount: 400, PaymentMethodID: ptr[int64](10),
	})
	require.NoError(t, err)
	require.InDelta(t, 600.0, repo.accounts[1].balance, 0.001)
}

func TestTransferMovesBothSides(t *testing.T) {
	svc, repo := fixture(ServiceConfig{})
	ctx := context.Background()

	_, err := svc.RecordEvent(ctx, cashierActor, CreateEventRequest{
		Date: "2026-03-01", Type: "transfer", Amount: 300, FromAccountID: ptr[int64](2), ToAccountID: ptr[int64](1),
	})
	require.NoError(t, err)
	require.InDelta(t, 1300.0, repo.accounts[1].balance, 0.001)
	require.InDelta(t, 4700.0, repo.accounts[2].balance, 0.001)
}

func TestTransferToSameAccountRejected(t *testing.T) {
	svc, _ := fixture(ServiceConfig{})
	_, err := svc.RecordEvent(context.Background(), cashierActor, CreateEventRequest{
		Date: "2026-03-01", Type: "transfer", Amount: 300, FromAccountID: ptr[int64](1), ToAccountID: ptr[int64](1),
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestDeleteRestoresBalance(t *testing.T) {
	svc, repo := fixture(ServiceConfig{})
	ctx := context.Background()

	event, err := svc.RecordEvent(ctx, cashierActor, CreateEventRequest{
		Date: "2026-03-01", Type: "expense", CategoryID: ptr[int64](2), Amount: 150, PaymentMethodID: ptr[int64](10),
	})
	require.NoError(t, err)
	require.InDelta(t, 850.0, repo.accounts[1].balance, 0.001)

	require.NoError(t, svc.DeleteEvent(ctx, cashierActor, event.ID))
	require.InDelta(t, 1000.0, repo.accounts[1].balance, 0.001)
	require.Empty(t, repo.events)
}

func TestArchivedAccountStillReversible(t *testing.T) {
	svc, repo, cat := fixtureWithCatalog(ServiceConfig{})
	ctx := context.Background()

	event, err := svc.RecordEvent(ctx, cashierActor, CreateEventRequest{
		Date: "2026-03-01", Type: "expense", CategoryID: ptr[int64](2), Amount: 150, PaymentMethodID: ptr[int64](10),
	})
	require.NoError(t, err)
	require.InDelta(t, 850.0, repo.accounts[1].balance, 0.001)

	// Archive the settlement account; the historical event must still reverse.
	archived := cat.accounts[1]
	archived.IsActive = false
	cat.accounts[1] = archived

	require.NoError(t, svc.DeleteEvent(ctx, cashierActor, event.ID))
	require.InDelta(t, 1000.0, repo.accounts[1].balance, 0.001)

	// New events on the archived account are rejected at validation.
	_, err = svc.RecordEvent(ctx, cashierActor, CreateEventRequest{
		Date: "2026-03-02", Type: "expense", CategoryID: ptr[int64](2), Amount: 10, PaymentMethodID: ptr[int64](10),
	})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.RecordEvent(ctx, cashierActor, CreateEventRequest{
		Date: "2026-03-02", Type: "transfer", Amount: 10, FromAccountID: ptr[int64](2), ToAccountID: ptr[int64](1),
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestUpdateSwapsEffect(t *testing.T) {
	svc, repo := fixture(ServiceConfig{})
	ctx := context.Background()

	event, err := svc.RecordEvent(ctx, cashierActor, CreateEventRequest{
		Date: "2026-03-01", Type: "expense", CategoryID: ptr[int64](2), Amount: 100, PaymentMethodID: ptr[int64](10),
	})
	require.NoError(t, err)

	updated, err := svc.UpdateEvent(ctx, cashierActor, event.ID, UpdateEventRequest{Amount: ptr(175.0)})
	require.NoError(t, err)
	require.InDelta(t, 175.0, updated.Amount, 0.001)
	require.InDelta(t, 825.0, repo.accounts[1].balance, 0.001)
}

func TestUpdateByStrangerRejected(t *testing.T) {
	svc, _ := fixture(ServiceConfig{})
	ctx := context.Background()

	event, err := svc.RecordEvent(ctx, cashierActor, CreateEventRequest{
		Date: "2026-03-01", Type: "expense", CategoryID: ptr[int64](2), Amount: 100, PaymentMethodID: ptr[int64](10),
	})
	require.NoError(t, err)

	stranger := shared.Actor{UserID: 99, Role: shared.RoleCashier}
	_, err = svc.UpdateEvent(ctx, stranger, event.ID, UpdateEventRequest{Amount: ptr(500.0)})
	require.ErrorIs(t, err, shared.ErrForbidden)

	// A privileged role may override.
	_, err = svc.UpdateEvent(ctx, ownerActor, event.ID, UpdateEventRequest{Amount: ptr(500.0)})
	require.NoError(t, err)
}

func TestCommissionReducesCredit(t *testing.T) {
	svc, repo := fixture(ServiceConfig{CommissionMode: CommissionReduceCredit})
	ctx := context.Background()

	event, err := svc.RecordEvent(ctx, cashierActor, CreateEventRequest{
		Date: "2026-03-01", Type: "income", CategoryID: ptr[int64](1), Amount: 1000, PaymentMethodID: ptr[int64](11),
	})
	require.NoError(t, err)
	require.InDelta(t, 980.0, event.CreditedAmount, 0.001)
	require.InDelta(t, 5980.0, repo.accounts[2].balance, 0.001)
	// The debit side of an expense is never reduced.
	_, err = svc.RecordEvent(ctx, cashierActor, CreateEventRequest{
		Date: "2026-03-01", Type: "expense", CategoryID: ptr[int64](2), Amount: 100, PaymentMethodID: ptr[int64](11),
	})
	require.NoError(t, err)
	require.InDelta(t, 5880.0, repo.accounts[2].balance, 0.001)
}

func TestOverdraftDenyCash(t *testing.T) {
	svc, repo := fixture(ServiceConfig{Overdraft: OverdraftDenyCash})
	ctx := context.Background()

	_, err := svc.RecordEvent(ctx, cashierActor, CreateEventRequest{
		Date: "2026-03-01", Type: "expense", CategoryID: ptr[int64](2), Amount: 1500, PaymentMethodID: ptr[int64](10),
	})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.InDelta(t, 1000.0, repo.accounts[1].balance, 0.001)
	require.Empty(t, repo.events, "rejected event must not persist")
}

func TestRecomputeBalancesDriftFree(t *testing.T) {
	svc, _ := fixture(ServiceConfig{})
	ctx := context.Background()

	_, err := svc.RecordEvent(ctx, cashierActor, CreateEventRequest{
		Date: "2026-03-01", Type: "income", CategoryID: ptr[int64](1), Amount: 200, PaymentMethodID: ptr[int64](10),
	})
	require.NoError(t, err)
	_, err = svc.RecordEvent(ctx, cashierActor, CreateEventRequest{
		Date: "2026-03-02", Type: "transfer", Amount: 50, FromAccountID: ptr[int64](1), ToAccountID: ptr[int64](2),
	})
	require.NoError(t, err)

	reports, err := svc.RecomputeBalances(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	for _, report := range reports {
		require.Zero(t, report.Drift, "account %d drifted", report.AccountID)
	}
}

func TestHealBalancesCorrectsDrift(t *testing.T) {
	svc, repo := fixture(ServiceConfig{})
	ctx := context.Background()

	_, err := svc.RecordEvent(ctx, cashierActor, CreateEventRequest{
		Date: "2026-03-01", Type: "income", CategoryID: ptr[int64](1), Amount: 200, PaymentMethodID: ptr[int64](10),
	})
	require.NoError(t, err)

	// Corrupt the stored balance out-of-band.
	repo.accounts[1].balance = 999

	healed, err := svc.HealBalances(ctx)
	require.NoError(t, err)
	require.Len(t, healed, 1)
	require.Equal(t, int64(1), healed[0].AccountID)
	require.InDelta(t, 1200.0, repo.accounts[1].balance, 0.001)
}
