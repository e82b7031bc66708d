package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/air-waffle/finance/internal/ledger"
)

// DriftScanner recomputes balances and optionally heals drift.
type DriftScanner struct {
	Ledger *ledger.Service
	Logger *slog.Logger
}

// Handle processes TaskDriftScan tasks.
func (s *DriftScanner) Handle(ctx context.Context, t *asynq.Task) error {
	var payload DriftScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	reports, err := s.Ledger.RecomputeBalances(ctx)
	if err != nil {
		return err
	}
	drifted := 0
	for _, report := range reports {
		if report.Drift == 0 {
			continue
		}
		drifted++
		s.Logger.Warn("balance drift detected",
			slog.Int64("account_id", report.AccountID),
			slog.Float64("stored", report.Stored),
			slog.Float64("computed", report.Computed),
			slog.Float64("drift", report.Drift))
	}
	if drifted == 0 {
		s.Logger.Info("drift scan clean", slog.Int("accounts", len(reports)))
		return nil
	}
	if !payload.Heal {
		return nil
	}
	healed, err := s.Ledger.HealBalances(ctx)
	if err != nil {
		return err
	}
	s.Logger.Info("drift healed", slog.Int("accounts", len(healed)))
	return nil
}
