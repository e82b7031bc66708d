package analytics

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/air-waffle/finance/internal/catalog"
	"github.com/air-waffle/finance/internal/shared"
)

// Block codes with a fixed meaning in the dashboard.
const (
	blockFoodCost  = "food_cost"
	blockLaborCost = "labor_cost"
)

// CatalogPort is the slice of the catalog aggregation depends on.
type CatalogPort interface {
	RootExpenseCategory(ctx context.Context, id int64) (catalog.ExpenseCategory, error)
	ListBlocks(ctx context.Context) ([]catalog.AnalyticBlock, error)
}

// Service computes aggregates over the timeline. Aggregation is read-only:
// results are always derived, never stored back into the ledger.
type Service struct {
	repo    Repository
	catalog CatalogPort
	cache   *Cache
}

// NewService wires the analytics service. cache may be nil.
func NewService(repo Repository, catalogPort CatalogPort, cache *Cache) *Service {
	return &Service{repo: repo, catalog: catalogPort, cache: cache}
}

// GetDashboard returns the headline summary for the window.
func (s *Service) GetDashboard(ctx context.Context, r Range) (Dashboard, error) {
	loader := func(ctx context.Context) (interface{}, error) {
		income, expense, err := s.repo.Totals(ctx, r)
		if err != nil {
			return nil, err
		}
		blocks, err := s.repo.BlockTotals(ctx, r)
		if err != nil {
			return nil, err
		}
		if blocks == nil {
			blocks = []BlockAmount{}
		}
		accounts, err := s.repo.AccountBalances(ctx)
		if err != nil {
			return nil, err
		}
		if accounts == nil {
			accounts = []AccountBalance{}
		}
		dashboard := Dashboard{
			Revenue:  roundCents(income),
			Expenses: roundCents(expense),
			Profit:   roundCents(income - expense),
			Blocks:   blocks,
			Accounts: accounts,
		}
		if income > 0 {
			dashboard.Profitability = roundCents(dashboard.Profit / income * 100)
		}
		for i, block := range blocks {
			if income > 0 {
				blocks[i].Percent = roundCents(block.Amount / income * 100)
			}
			if block.Code == blockFoodCost || block.Code == blockLaborCost {
				dashboard.PrimeCost = roundCents(dashboard.PrimeCost + block.Amount)
			}
		}
		for _, account := range accounts {
			dashboard.TotalBalance = roundCents(dashboard.TotalBalance + account.Balance)
		}
		return dashboard, nil
	}
	var dashboard Dashboard
	key, err := s.cache.BuildKey(ctx, keyDashboard(r))
	if err != nil {
		return Dashboard{}, err
	}
	if err := s.cache.FetchJSON(ctx, key, &dashboard, loader); err != nil {
		return Dashboard{}, err
	}
	return dashboard, nil
}

// GetPivot returns period buckets split by analytic type and category. Depth 0
// keeps leaf categories; depth 1 rolls expense categories up to their root.
// Grouping by block replaces expense categories with the analytic blocks that
// contain them.
func (s *Service) GetPivot(ctx context.Context, r Range, granularity Granularity, depth int, grouping PivotGrouping) ([]PivotPeriod, error) {
	if depth != 0 && depth != 1 {
		return nil, shared.Validationf("depth", "must be 0 or 1")
	}
	if grouping == "" {
		grouping = GroupByCategory
	}
	if grouping != GroupByCategory && grouping != GroupByBlock {
		return nil, shared.Validationf("rows", "must be category or block")
	}
	loader := func(ctx context.Context) (interface{}, error) {
		rows, err := s.repo.PivotRows(ctx, r, granularity)
		if err != nil {
			return nil, err
		}
		switch {
		case grouping == GroupByBlock:
			rows, err = s.blockRows(ctx, rows)
		case depth == 1:
			rows, err = s.rollupRows(ctx, rows)
		}
		if err != nil {
			return nil, err
		}
		return buildPivot(rows), nil
	}
	var periods []PivotPeriod
	key, err := s.cache.BuildKey(ctx, keyPivot(r, granularity, depth, grouping))
	if err != nil {
		return nil, err
	}
	if err := s.cache.FetchJSON(ctx, key, &periods, loader); err != nil {
		return nil, err
	}
	return periods, nil
}

// GetTrend returns a gap-free series over the window: every bucket between
// From and To appears even when no events landed in it.
func (s *Service) GetTrend(ctx context.Context, r Range, granularity Granularity) ([]TrendPoint, error) {
	loader := func(ctx context.Context) (interface{}, error) {
		points, err := s.repo.TrendRows(ctx, r, granularity)
		if err != nil {
			return nil, err
		}
		return fillGaps(r, granularity, points), nil
	}
	var points []TrendPoint
	key, err := s.cache.BuildKey(ctx, keyTrend(r, granularity))
	if err != nil {
		return nil, err
	}
	if err := s.cache.FetchJSON(ctx, key, &points, loader); err != nil {
		return nil, err
	}
	return points, nil
}

// GetCellDetails lists the timeline events behind one pivot cell in
// chronological order. Drill-down bypasses the cache.
func (s *Service) GetCellDetails(ctx context.Context, r Range, period string, granularity Granularity, eventType string, categoryID int64) ([]CellDetail, error) {
	if eventType != "income" && eventType != "expense" {
		return nil, shared.Validationf("type", "must be income or expense")
	}
	details, err := s.repo.CellDetails(ctx, r, period, granularity, eventType, categoryID)
	if err != nil {
		return nil, err
	}
	if details == nil {
		details = []CellDetail{}
	}
	return details, nil
}

// GetByCategory returns per-category totals for one analytic type, with each
// category's share of the type total.
func (s *Service) GetByCategory(ctx context.Context, r Range, eventType string) ([]CategoryShare, error) {
	if eventType != "income" && eventType != "expense" {
		return nil, shared.Validationf("type", "must be income or expense")
	}
	loader := func(ctx context.Context) (interface{}, error) {
		shares, err := s.repo.CategoryTotals(ctx, r, eventType)
		if err != nil {
			return nil, err
		}
		var total float64
		for _, share := range shares {
			total += share.Amount
		}
		for i := range shares {
			shares[i].Amount = roundCents(shares[i].Amount)
			if total > 0 {
				shares[i].Percent = roundCents(shares[i].Amount / total * 100)
			}
		}
		if shares == nil {
			shares = []CategoryShare{}
		}
		return shares, nil
	}
	var shares []CategoryShare
	key, err := s.cache.BuildKey(ctx, keyByCategory(r, eventType))
	if err != nil {
		return nil, err
	}
	if err := s.cache.FetchJSON(ctx, key, &shares, loader); err != nil {
		return nil, err
	}
	return shares, nil
}

// blockRows replaces each expense leaf with the analytic blocks it belongs
// to; a leaf in several blocks is counted under each of them. Income rows
// pass through unchanged.
func (s *Service) blockRows(ctx context.Context, rows []PivotRow) ([]PivotRow, error) {
	blocks, err := s.catalog.ListBlocks(ctx)
	if err != nil {
		return nil, err
	}
	type membership struct {
		id   int64
		name string
	}
	byCategory := make(map[int64][]membership)
	for _, block := range blocks {
		for _, categoryID := range block.CategoryIDs {
			byCategory[categoryID] = append(byCategory[categoryID], membership{id: block.ID, name: block.Name})
		}
	}
	type cellKey struct {
		period    string
		eventType string
		blockID   int64
	}
	merged := make(map[cellKey]PivotRow)
	var order []cellKey
	add := func(row PivotRow) {
		key := cellKey{period: row.Period, eventType: row.Type, blockID: row.CategoryID}
		if existing, ok := merged[key]; ok {
			existing.Amount += row.Amount
			merged[key] = existing
			return
		}
		merged[key] = row
		order = append(order, key)
	}
	for _, row := range rows {
		if row.Type != "expense" {
			add(row)
			continue
		}
		for _, m := range byCategory[row.CategoryID] {
			add(PivotRow{Period: row.Period, Type: row.Type, CategoryID: m.id, CategoryName: m.name, Amount: row.Amount})
		}
	}
	result := make([]PivotRow, 0, len(order))
	for _, key := range order {
		row := merged[key]
		row.Amount = roundCents(row.Amount)
		result = append(result, row)
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Period != result[j].Period {
			return result[i].Period < result[j].Period
		}
		if result[i].Type != result[j].Type {
			return result[i].Type < result[j].Type
		}
		return result[i].CategoryName < result[j].CategoryName
	})
	return result, nil
}

// rollupRows folds each expense leaf into its root category, memoizing the
// leaf-to-root resolution. Income categories are flat and pass through.
func (s *Service) rollupRows(ctx context.Context, rows []PivotRow) ([]PivotRow, error) {
	roots := make(map[int64]catalog.ExpenseCategory)
	type cellKey struct {
		period     string
		eventType  string
		categoryID int64
	}
	merged := make(map[cellKey]PivotRow)
	var order []cellKey
	for _, row := range rows {
		if row.Type == "expense" {
			root, ok := roots[row.CategoryID]
			if !ok {
				resolved, err := s.catalog.RootExpenseCategory(ctx, row.CategoryID)
				if err != nil {
					return nil, err
				}
				roots[row.CategoryID] = resolved
				root = resolved
			}
			row.CategoryID = root.ID
			row.CategoryName = root.Name
		}
		key := cellKey{period: row.Period, eventType: row.Type, categoryID: row.CategoryID}
		if existing, ok := merged[key]; ok {
			existing.Amount += row.Amount
			merged[key] = existing
			continue
		}
		merged[key] = row
		order = append(order, key)
	}
	result := make([]PivotRow, 0, len(order))
	for _, key := range order {
		row := merged[key]
		row.Amount = roundCents(row.Amount)
		result = append(result, row)
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Period != result[j].Period {
			return result[i].Period < result[j].Period
		}
		if result[i].Type != result[j].Type {
			return result[i].Type < result[j].Type
		}
		return result[i].CategoryName < result[j].CategoryName
	})
	return result, nil
}

func buildPivot(rows []PivotRow) []PivotPeriod {
	var periods []PivotPeriod
	for _, row := range rows {
		if len(periods) == 0 || periods[len(periods)-1].Period != row.Period {
			periods = append(periods, PivotPeriod{Period: row.Period})
		}
		period := &periods[len(periods)-1]
		if len(period.Groups) == 0 || period.Groups[len(period.Groups)-1].Type != row.Type {
			period.Groups = append(period.Groups, PivotGroup{Type: row.Type})
		}
		group := &period.Groups[len(period.Groups)-1]
		group.Total = roundCents(group.Total + row.Amount)
		group.Categories = append(group.Categories, PivotCell{
			CategoryID:   row.CategoryID,
			CategoryName: row.CategoryName,
			Amount:       row.Amount,
		})
	}
	if periods == nil {
		periods = []PivotPeriod{}
	}
	return periods
}

// fillGaps expands the sparse DB series to one point per bucket in the window.
func fillGaps(r Range, granularity Granularity, points []TrendPoint) []TrendPoint {
	byPeriod := make(map[string]TrendPoint, len(points))
	for _, point := range points {
		byPeriod[point.Period] = point
	}
	var filled []TrendPoint
	layout := "2006-01-02"
	step := func(t time.Time) time.Time { return t.AddDate(0, 0, 1) }
	cursor := r.From
	if granularity == ByMonth {
		layout = "2006-01"
		step = func(t time.Time) time.Time { return t.AddDate(0, 1, 0) }
		cursor = time.Date(r.From.Year(), r.From.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	for !cursor.After(r.To) {
		period := cursor.Format(layout)
		if point, ok := byPeriod[period]; ok {
			filled = append(filled, point)
		} else {
			filled = append(filled, TrendPoint{Period: period})
		}
		cursor = step(cursor)
	}
	if filled == nil {
		filled = []TrendPoint{}
	}
	return filled
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
