package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/air-waffle/finance/internal/catalog"
	"github.com/air-waffle/finance/internal/shared"
)

type fakeRepo struct {
	income   float64
	expense  float64
	blocks   []BlockAmount
	balances []AccountBalance
	shares   []CategoryShare
	pivot    []PivotRow
	trend    []TrendPoint
	details  []CellDetail
}

func (r *fakeRepo) Totals(ctx context.Context, rg Range) (float64, float64, error) {
	return r.income, r.expense, nil
}

func (r *fakeRepo) BlockTotals(ctx context.Context, rg Range) ([]BlockAmount, error) {
	return r.blocks, nil
}

func (r *fakeRepo) AccountBalances(ctx context.Context) ([]AccountBalance, error) {
	return r.balances, nil
}

func (r *fakeRepo) CategoryTotals(ctx context.Context, rg Range, eventType string) ([]CategoryShare, error) {
	return r.shares, nil
}

func (r *fakeRepo) PivotRows(ctx context.Context, rg Range, granularity Granularity) ([]PivotRow, error) {
	return r.pivot, nil
}

func (r *fakeRepo) TrendRows(ctx context.Context, rg Range, granularity Granularity) ([]TrendPoint, error) {
	return r.trend, nil
}

func (r *fakeRepo) CellDetails(ctx context.Context, rg Range, period string, granularity Granularity, eventType string, categoryID int64) ([]CellDetail, error) {
	return r.details, nil
}

// rootCatalog maps every leaf to a fixed root per table.
type rootCatalog struct {
	roots  map[int64]catalog.ExpenseCategory
	blocks []catalog.AnalyticBlock
}

func (c rootCatalog) RootExpenseCategory(ctx context.Context, id int64) (catalog.ExpenseCategory, error) {
	if root, ok := c.roots[id]; ok {
		return root, nil
	}
	return catalog.ExpenseCategory{ID: id}, nil
}

func (c rootCatalog) ListBlocks(ctx context.Context) ([]catalog.AnalyticBlock, error) {
	return c.blocks, nil
}

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func TestDashboardTotals(t *testing.T) {
	repo := &fakeRepo{
		income:  1000,
		expense: 600,
		blocks: []BlockAmount{
			{BlockID: 1, Code: "food_cost", Name: "Food Cost", Amount: 300},
			{BlockID: 2, Code: "labor_cost", Name: "Labor Cost", Amount: 200},
			{BlockID: 3, Code: "overhead", Name: "Overhead", Amount: 100},
		},
	}
	repo.balances = []AccountBalance{
		{AccountID: 1, Name: "Cash", Balance: 150},
		{AccountID: 2, Name: "Bank", Balance: 850},
	}
	svc := NewService(repo, rootCatalog{}, nil)

	dashboard, err := svc.GetDashboard(context.Background(), Range{From: day("2026-03-01"), To: day("2026-03-31")})
	require.NoError(t, err)
	require.InDelta(t, 1000.0, dashboard.Revenue, 0.001)
	require.InDelta(t, 600.0, dashboard.Expenses, 0.001)
	require.InDelta(t, 400.0, dashboard.Profit, 0.001)
	require.InDelta(t, 40.0, dashboard.Profitability, 0.001)
	require.InDelta(t, 500.0, dashboard.PrimeCost, 0.001, "food_cost + labor_cost")
	require.Len(t, dashboard.Blocks, 3)
	require.InDelta(t, 30.0, dashboard.Blocks[0].Percent, 0.001, "food_cost share of revenue")
	require.InDelta(t, 20.0, dashboard.Blocks[1].Percent, 0.001)
	require.Len(t, dashboard.Accounts, 2)
	require.InDelta(t, 1000.0, dashboard.TotalBalance, 0.001)
}

func TestDashboardZeroRevenue(t *testing.T) {
	svc := NewService(&fakeRepo{expense: 100}, rootCatalog{}, nil)

	dashboard, err := svc.GetDashboard(context.Background(), Range{From: day("2026-03-01"), To: day("2026-03-31")})
	require.NoError(t, err)
	require.Zero(t, dashboard.Profitability)
	require.InDelta(t, -100.0, dashboard.Profit, 0.001)
}

func TestPivotLeafGrouping(t *testing.T) {
	repo := &fakeRepo{pivot: []PivotRow{
		{Period: "2026-03", Type: "expense", CategoryID: 11, CategoryName: "Meat", Amount: 120},
		{Period: "2026-03", Type: "expense", CategoryID: 12, CategoryName: "Vegetables", Amount: 80},
		{Period: "2026-03", Type: "income", CategoryID: 1, CategoryName: "Sales", Amount: 500},
	}}
	svc := NewService(repo, rootCatalog{}, nil)

	periods, err := svc.GetPivot(context.Background(), Range{From: day("2026-03-01"), To: day("2026-03-31")}, ByMonth, 0, GroupByCategory)
	require.NoError(t, err)
	require.Len(t, periods, 1)
	require.Equal(t, "2026-03", periods[0].Period)
	require.Len(t, periods[0].Groups, 2)
	require.Equal(t, "expense", periods[0].Groups[0].Type)
	require.InDelta(t, 200.0, periods[0].Groups[0].Total, 0.001)
	require.InDelta(t, 500.0, periods[0].Groups[1].Total, 0.001)
}

func TestPivotRootRollup(t *testing.T) {
	repo := &fakeRepo{pivot: []PivotRow{
		{Period: "2026-03", Type: "expense", CategoryID: 11, CategoryName: "Meat", Amount: 120},
		{Period: "2026-03", Type: "expense", CategoryID: 12, CategoryName: "Vegetables", Amount: 80},
		{Period: "2026-03", Type: "income", CategoryID: 1, CategoryName: "Sales", Amount: 500},
	}}
	food := catalog.ExpenseCategory{ID: 2, Name: "Food Cost"}
	svc := NewService(repo, rootCatalog{roots: map[int64]catalog.ExpenseCategory{11: food, 12: food}}, nil)

	periods, err := svc.GetPivot(context.Background(), Range{From: day("2026-03-01"), To: day("2026-03-31")}, ByMonth, 1, GroupByCategory)
	require.NoError(t, err)
	require.Len(t, periods, 1)

	expense := periods[0].Groups[0]
	require.Equal(t, "expense", expense.Type)
	require.Len(t, expense.Categories, 1, "both leaves fold into Food Cost")
	require.Equal(t, "Food Cost", expense.Categories[0].CategoryName)
	require.InDelta(t, 200.0, expense.Categories[0].Amount, 0.001)
}

func TestPivotDepthValidated(t *testing.T) {
	svc := NewService(&fakeRepo{}, rootCatalog{}, nil)
	_, err := svc.GetPivot(context.Background(), Range{From: day("2026-03-01"), To: day("2026-03-02")}, ByDay, 3, GroupByCategory)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestPivotTotalsMatchDashboard(t *testing.T) {
	rows := []PivotRow{
		{Period: "2026-03", Type: "expense", CategoryID: 11, CategoryName: "Meat", Amount: 120},
		{Period: "2026-03", Type: "expense", CategoryID: 12, CategoryName: "Rent", Amount: 80},
		{Period: "2026-03", Type: "income", CategoryID: 1, CategoryName: "Sales", Amount: 350},
		{Period: "2026-03", Type: "income", CategoryID: 2, CategoryName: "Other", Amount: 150},
	}
	repo := &fakeRepo{income: 500, expense: 200, pivot: rows}
	svc := NewService(repo, rootCatalog{}, nil)
	rg := Range{From: day("2026-03-01"), To: day("2026-03-31")}

	dashboard, err := svc.GetDashboard(context.Background(), rg)
	require.NoError(t, err)
	periods, err := svc.GetPivot(context.Background(), rg, ByMonth, 0, GroupByCategory)
	require.NoError(t, err)

	var income, expense float64
	for _, period := range periods {
		for _, group := range period.Groups {
			switch group.Type {
			case "income":
				income += group.Total
			case "expense":
				expense += group.Total
			}
		}
	}
	require.InDelta(t, dashboard.Revenue, income, 0.001, "pivot income cells must sum to dashboard revenue")
	require.InDelta(t, dashboard.Expenses, expense, 0.001, "pivot expense cells must sum to dashboard expenses")
	require.InDelta(t, dashboard.Profit, income-expense, 0.001)
}

func TestPivotBlockGrouping(t *testing.T) {
	repo := &fakeRepo{pivot: []PivotRow{
		{Period: "2026-03", Type: "expense", CategoryID: 11, CategoryName: "Meat", Amount: 120},
		{Period: "2026-03", Type: "expense", CategoryID: 12, CategoryName: "Salaries", Amount: 80},
		{Period: "2026-03", Type: "expense", CategoryID: 13, CategoryName: "Rent", Amount: 50},
		{Period: "2026-03", Type: "income", CategoryID: 1, CategoryName: "Sales", Amount: 500},
	}}
	cat := rootCatalog{blocks: []catalog.AnalyticBlock{
		{ID: 1, Code: "food_cost", Name: "Food Cost", CategoryIDs: []int64{11}},
		{ID: 2, Code: "labor_cost", Name: "Labor Cost", CategoryIDs: []int64{12}},
	}}
	svc := NewService(repo, cat, nil)

	periods, err := svc.GetPivot(context.Background(), Range{From: day("2026-03-01"), To: day("2026-03-31")}, ByMonth, 0, GroupByBlock)
	require.NoError(t, err)
	require.Len(t, periods, 1)

	expense := periods[0].Groups[0]
	require.Equal(t, "expense", expense.Type)
	require.Len(t, expense.Categories, 2, "Rent belongs to no block and drops out")
	require.Equal(t, "Food Cost", expense.Categories[0].CategoryName)
	require.InDelta(t, 120.0, expense.Categories[0].Amount, 0.001)
	require.Equal(t, "Labor Cost", expense.Categories[1].CategoryName)
	require.InDelta(t, 80.0, expense.Categories[1].Amount, 0.001)

	income := periods[0].Groups[1]
	require.Equal(t, "income", income.Type)
	require.InDelta(t, 500.0, income.Total, 0.001, "income rows pass through")
}

func TestPivotGroupingValidated(t *testing.T) {
	svc := NewService(&fakeRepo{}, rootCatalog{}, nil)
	_, err := svc.GetPivot(context.Background(), Range{From: day("2026-03-01"), To: day("2026-03-02")}, ByDay, 0, "weekday")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestByCategoryShares(t *testing.T) {
	repo := &fakeRepo{shares: []CategoryShare{
		{CategoryID: 11, Name: "Meat", Amount: 300},
		{CategoryID: 12, Name: "Rent", Amount: 100},
	}}
	svc := NewService(repo, rootCatalog{}, nil)

	shares, err := svc.GetByCategory(context.Background(), Range{From: day("2026-03-01"), To: day("2026-03-31")}, "expense")
	require.NoError(t, err)
	require.Len(t, shares, 2)
	require.InDelta(t, 75.0, shares[0].Percent, 0.001)
	require.InDelta(t, 25.0, shares[1].Percent, 0.001)
}

func TestByCategoryTypeValidated(t *testing.T) {
	svc := NewService(&fakeRepo{}, rootCatalog{}, nil)
	_, err := svc.GetByCategory(context.Background(), Range{From: day("2026-03-01"), To: day("2026-03-31")}, "transfer")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestTrendGapFree(t *testing.T) {
	repo := &fakeRepo{trend: []TrendPoint{
		{Period: "2026-03-01", Income: 100, Expense: 40, Net: 60},
		{Period: "2026-03-03", Income: 200, Expense: 0, Net: 200},
	}}
	svc := NewService(repo, rootCatalog{}, nil)

	points, err := svc.GetTrend(context.Background(), Range{From: day("2026-03-01"), To: day("2026-03-04")}, ByDay)
	require.NoError(t, err)
	require.Len(t, points, 4)
	require.Equal(t, "2026-03-02", points[1].Period)
	require.Zero(t, points[1].Income)
	require.Zero(t, points[1].Expense)
	require.InDelta(t, 200.0, points[2].Income, 0.001)
}

func TestTrendMonthlyBuckets(t *testing.T) {
	svc := NewService(&fakeRepo{}, rootCatalog{}, nil)

	points, err := svc.GetTrend(context.Background(), Range{From: day("2026-01-15"), To: day("2026-03-02")}, ByMonth)
	require.NoError(t, err)
	require.Len(t, points, 3)
	require.Equal(t, "2026-01", points[0].Period)
	require.Equal(t, "2026-03", points[2].Period)
}

func TestCellDetailsTypeValidated(t *testing.T) {
	svc := NewService(&fakeRepo{}, rootCatalog{}, nil)
	_, err := svc.GetCellDetails(context.Background(), Range{From: day("2026-03-01"), To: day("2026-03-31")}, "2026-03", ByMonth, "transfer", 1)
	require.ErrorIs(t, err, shared.ErrValidation)
}
