//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oppa-kitchen/storefront/internal/cart"
	"github.com/oppa-kitchen/storefront/internal/menu"
	"github.com/oppa-kitchen/storefront/internal/storage/postgres"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestCartSurvivesReopen runs a cart through the PostgreSQL repository and
// reopens it from a fresh registry.
func TestCartSurvivesReopen(t *testing.T) {
	ctx := context.Background()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("storefront_test"),
		tcpostgres.WithUsername("oppa"),
		tcpostgres.WithPassword("oppa"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	}()

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}
	if err := postgres.Migrate(connStr); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	// Second run must be a no-op.
	if err := postgres.Migrate(connStr); err != nil {
		t.Fatalf("migrate again: %v", err)
	}

	pool, err := postgres.Connect(ctx, connStr)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	repo := postgres.New(pool)
	cartID := uuid.New()

	s, err := cart.NewRegistry(repo, nil, nil).Get(ctx, cartID)
	if err != nil {
		t.Fatalf("open cart: %v", err)
	}
	item := menu.Item{ID: "42", Name: "Tteokbokki", Price: decimal.RequireFromString("9.75"), Image: menu.StringImage("/t.jpg")}
	for i := 0; i < 3; i++ {
		if err := s.AddItem(ctx, item); err != nil {
			t.Fatalf("add item: %v", err)
		}
	}

	reopened, err := cart.NewRegistry(repo, nil, nil).Get(ctx, cartID)
	if err != nil {
		t.Fatalf("reopen cart: %v", err)
	}
	if got := reopened.ItemCount(); got != 3 {
		t.Errorf("item count: got %d, want 3", got)
	}
	if got := reopened.Total().StringFixed(2); got != "29.25" {
		t.Errorf("total: got %s, want 29.25", got)
	}

	if err := reopened.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	data, err := repo.Load(ctx, cart.Key(cartID))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	items, err := cart.Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected empty snapshot after clear, got %d items", len(items))
	}

	n, err := repo.PurgeBefore(ctx, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 1 {
		t.Errorf("purged: got %d, want 1", n)
	}
	if _, err := repo.Load(ctx, cart.Key(cartID)); err != cart.ErrNoSnapshot {
		t.Errorf("load after purge: got %v, want ErrNoSnapshot", err)
	}
}
