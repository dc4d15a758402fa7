// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"business-inventory/internal/alert"
	"business-inventory/internal/common/config"
	"business-inventory/internal/common/database"
	"business-inventory/internal/common/logger"
	"business-inventory/internal/devicestate"
	"business-inventory/internal/models"
	"business-inventory/internal/realtime"
	"business-inventory/internal/repository"
	"business-inventory/internal/store"
)

// These tests run against the services named in configs/config.yaml. They are skipped
// unless INVENTORY_E2E is set.

var zapLog *zap.Logger

func TestMain(m *testing.M) {
	if os.Getenv("INVENTORY_E2E") == "" {
		fmt.Println("INVENTORY_E2E not set, skipping end-to-end tests")
		os.Exit(0)
	}
	zapLog, _ = zap.NewDevelopment()
	code := m.Run()
	_ = zapLog.Sync()
	os.Exit(code)
}

type env struct {
	cfg      *config.Config
	pg       *database.PostgresClient
	repos    *repository.Repository
	store    *store.Store
	listener *realtime.Listener
	alerts   *alert.Memory
}

func setup(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()

	cfg, err := config.Load()
	require.NoError(t, err)

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	require.NoError(t, err)
	require.NoError(t, pg.Ping(ctx), "postgres must be reachable")
	t.Cleanup(func() { pg.Close() })
	require.NoError(t, repository.Migrate(ctx, pg.GetDB()))

	rdb, err := database.NewRedis(cfg.Database.Redis)
	require.NoError(t, err)
	require.NoError(t, rdb.Ping(ctx), "redis must be reachable")
	t.Cleanup(func() { rdb.Close() })

	log := logger.NewZapAdapter(zapLog)
	alerts := alert.NewMemory(50)
	repos := repository.New(pg.GetDB())
	st := store.New(store.Deps{
		Businesses:    repos.Businesses,
		Products:      repos.Products,
		Notifications: repos.Notifications,
		Device:        devicestate.New(rdb.GetClient(), fmt.Sprintf("e2e-%d", time.Now().UnixNano())),
		Alerts:        alerts,
		Logger:        log,
	}, store.Options{})

	conn := pg.NewListener(time.Second, 10*time.Second, realtime.ConnectionEvents(log))
	listener := realtime.New(conn, st, log).WithFetcher(repos)
	require.NoError(t, listener.Start())
	ctx, cancel := context.WithCancel(ctx)
	go listener.Run(ctx)
	t.Cleanup(func() {
		cancel()
		listener.Close()
	})

	st.Load(ctx)
	return &env{cfg: cfg, pg: pg, repos: repos, store: st, listener: listener, alerts: alerts}
}

func TestLocalWritesRoundTrip(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	b, err := e.store.CreateBusiness(ctx, models.BusinessInput{Name: "E2E Tienda"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.store.DeleteBusiness(ctx, b.ID) })

	p, err := e.store.CreateProduct(ctx, models.ProductInput{BusinessID: b.ID, Name: "Silla", Price: 25})
	require.NoError(t, err)
	assert.Equal(t, models.StatusAvailable, p.Status)

	rows, err := e.repos.Products.List(ctx)
	require.NoError(t, err)
	found := false
	for _, r := range rows {
		if r.ID == p.ID {
			found = true
		}
	}
	assert.True(t, found, "product should be persisted remotely")

	_, err = e.store.MarkSold(ctx, p.ID)
	require.NoError(t, err)
	got, ok := e.store.ProductByID(p.ID)
	require.True(t, ok)
	assert.Equal(t, models.StatusSold, got.Status)
}

func TestRemoteWritesArriveThroughRealtime(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	b, err := e.store.CreateBusiness(ctx, models.BusinessInput{Name: "E2E Remota"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.store.DeleteBusiness(ctx, b.ID) })

	// Another client inserts a product directly in the database.
	row, err := e.repos.Products.Insert(ctx, models.ProductRow{
		ID:         fmt.Sprintf("e2e-%d", time.Now().UnixNano()),
		BusinessID: b.ID,
		Name:       "Mesa",
		Price:      80,
		Status:     string(models.StatusAvailable),
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := e.store.ProductByID(row.ID)
		return ok
	}, 10*time.Second, 100*time.Millisecond, "insert should be merged from the change channel")

	// The cascade on the business row removes its products everywhere.
	require.NoError(t, e.store.DeleteBusiness(ctx, b.ID))
	require.Eventually(t, func() bool {
		_, ok := e.store.ProductByID(row.ID)
		return !ok
	}, 10*time.Second, 100*time.Millisecond)
}
