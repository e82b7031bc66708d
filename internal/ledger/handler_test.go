package ledger

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/air-waffle/finance/internal/shared"
)

type captureEnqueuer struct {
	heal *bool
}

func (c *captureEnqueuer) EnqueueDriftScan(ctx context.Context, heal bool) error {
	c.heal = &heal
	return nil
}

func TestDriftScanEnqueued(t *testing.T) {
	svc, _ := fixture(ServiceConfig{})
	enqueuer := &captureEnqueuer{}
	handler := NewHandler(slog.Default(), svc, enqueuer)
	router := chi.NewRouter()
	handler.MountRoutes(router)

	req := httptest.NewRequest(http.MethodPost, "/balances/drift-scan?heal=1", nil)
	req = req.WithContext(shared.ContextWithActor(req.Context(), ownerActor))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.NotNil(t, enqueuer.heal)
	require.True(t, *enqueuer.heal)
}

func TestDriftScanRequiresPrivilege(t *testing.T) {
	svc, _ := fixture(ServiceConfig{})
	handler := NewHandler(slog.Default(), svc, &captureEnqueuer{})
	router := chi.NewRouter()
	handler.MountRoutes(router)

	req := httptest.NewRequest(http.MethodPost, "/balances/drift-scan", nil)
	req = req.WithContext(shared.ContextWithActor(req.Context(), cashierActor))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}
