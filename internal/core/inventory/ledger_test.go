package inventory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/bizdesk/backoffice/internal/core/domain"
	"github.com/bizdesk/backoffice/internal/core/ports"
	"github.com/bizdesk/backoffice/internal/infrastructure/db/memory"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func newLedger(t *testing.T) (*Ledger, *memory.Store) {
	t.Helper()
	store := memory.New()
	return NewLedger(store, zerolog.Nop()), store
}

func seedProduct(t *testing.T, store ports.Store, id string, stock int) {
	t.Helper()
	err := store.InTx(context.Background(), func(tx ports.Tx) error {
		return tx.CreateProduct(context.Background(), &domain.Product{
			ID:    id,
			SKU:   "SKU-" + id,
			Name:  "product " + id,
			Price: decimal.NewFromInt(10),
			Stock: stock,
		})
	})
	if err != nil {
		t.Fatalf("seed product %s: %v", id, err)
	}
}

func stockOf(t *testing.T, store ports.Store, id string) int {
	t.Helper()
	var stock int
	err := store.View(context.Background(), func(tx ports.Tx) error {
		p, err := tx.FindProductByID(context.Background(), id)
		if err != nil {
			return err
		}
		stock = p.Stock
		return nil
	})
	if err != nil {
		t.Fatalf("read stock %s: %v", id, err)
	}
	return stock
}

// ---------------------------------------------------------------------------
// Reserve / Release
// ---------------------------------------------------------------------------

func TestLedger_Reserve_Decrements(t *testing.T) {
	ledger, store := newLedger(t)
	seedProduct(t, store, "p1", 10)

	if err := ledger.Reserve(context.Background(), "p1", 3); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if got := stockOf(t, store, "p1"); got != 7 {
		t.Errorf("expected stock 7, got %d", got)
	}
}

func TestLedger_Reserve_ExactStockSucceeds(t *testing.T) {
	ledger, store := newLedger(t)
	seedProduct(t, store, "p1", 4)

	if err := ledger.Reserve(context.Background(), "p1", 4); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if got := stockOf(t, store, "p1"); got != 0 {
		t.Errorf("expected stock 0, got %d", got)
	}
}

func TestLedger_Reserve_OneOverStockFails(t *testing.T) {
	ledger, store := newLedger(t)
	seedProduct(t, store, "p1", 4)

	err := ledger.Reserve(context.Background(), "p1", 5)
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if got := stockOf(t, store, "p1"); got != 4 {
		t.Errorf("stock must be unchanged, got %d", got)
	}
}

func TestLedger_Reserve_RejectsNonPositiveQuantity(t *testing.T) {
	ledger, store := newLedger(t)
	seedProduct(t, store, "p1", 4)

	for _, qty := range []int{0, -1} {
		if err := ledger.Reserve(context.Background(), "p1", qty); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("qty=%d: expected ErrValidation, got %v", qty, err)
		}
	}
}

func TestLedger_Reserve_UnknownProduct(t *testing.T) {
	ledger, _ := newLedger(t)

	if err := ledger.Reserve(context.Background(), "ghost", 1); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

// lookupFailingTx reports no stock and then fails the product lookup.
type lookupFailingTx struct {
	ports.Tx
	err error
}

func (tx lookupFailingTx) DecrementStock(context.Context, string, int) (bool, error) {
	return false, nil
}

func (tx lookupFailingTx) FindProductByID(context.Context, string) (*domain.Product, error) {
	return nil, tx.err
}

func TestLedger_ReserveIn_StoreFailureIsNotValidation(t *testing.T) {
	ledger, store := newLedger(t)
	seedProduct(t, store, "p1", 5)
	storeErr := errors.New("connection reset")

	err := store.InTx(context.Background(), func(tx ports.Tx) error {
		return ledger.ReserveIn(context.Background(), lookupFailingTx{Tx: tx, err: storeErr},
			[]domain.StockLine{{ProductID: "p1", Quantity: 1}})
	})
	if !errors.Is(err, storeErr) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
	if errors.Is(err, domain.ErrValidation) {
		t.Fatalf("store failure reported as validation: %v", err)
	}
}

func TestLedger_ReserveBatch_AllOrNothing(t *testing.T) {
	ledger, store := newLedger(t)
	seedProduct(t, store, "a", 10)
	seedProduct(t, store, "b", 1)

	err := ledger.ReserveBatch(context.Background(), []domain.StockLine{
		{ProductID: "a", Quantity: 5},
		{ProductID: "b", Quantity: 2},
	})
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if got := stockOf(t, store, "a"); got != 10 {
		t.Errorf("product a must be untouched after failed batch, got %d", got)
	}
	if got := stockOf(t, store, "b"); got != 1 {
		t.Errorf("product b must be untouched after failed batch, got %d", got)
	}
}

func TestLedger_ReserveBatch_MergesRepeatedProducts(t *testing.T) {
	ledger, store := newLedger(t)
	seedProduct(t, store, "a", 5)

	// 3 + 3 exceeds 5 even though each line alone fits.
	err := ledger.ReserveBatch(context.Background(), []domain.StockLine{
		{ProductID: "a", Quantity: 3},
		{ProductID: "a", Quantity: 3},
	})
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if got := stockOf(t, store, "a"); got != 5 {
		t.Errorf("expected stock 5, got %d", got)
	}
}

func TestLedger_Release_RestoresReservedQuantity(t *testing.T) {
	ledger, store := newLedger(t)
	seedProduct(t, store, "p1", 10)

	lines := []domain.StockLine{{ProductID: "p1", Quantity: 3}}
	if err := ledger.ReserveBatch(context.Background(), lines); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := ledger.ReleaseBatch(context.Background(), lines); err != nil {
		t.Fatalf("release: %v", err)
	}
	if got := stockOf(t, store, "p1"); got != 10 {
		t.Errorf("expected stock 10 after round trip, got %d", got)
	}
}

func TestLedger_Restock(t *testing.T) {
	ledger, store := newLedger(t)
	seedProduct(t, store, "p1", 2)

	p, err := ledger.Restock(context.Background(), "p1", 8)
	if err != nil {
		t.Fatalf("restock: %v", err)
	}
	if p.Stock != 10 {
		t.Errorf("expected returned stock 10, got %d", p.Stock)
	}

	if _, err := ledger.Restock(context.Background(), "p1", 0); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation for zero restock, got %v", err)
	}
	if _, err := ledger.Restock(context.Background(), "ghost", 1); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown product, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Concurrency
// ---------------------------------------------------------------------------

func TestLedger_ConcurrentReservations_ExhaustStockExactly(t *testing.T) {
	const (
		stock    = 20
		requests = 50
	)
	ledger, store := newLedger(t)
	seedProduct(t, store, "hot", stock)

	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		successes    int
		insufficient int
	)
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := ledger.Reserve(context.Background(), "hot", 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, domain.ErrInsufficientStock):
				insufficient++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != stock {
		t.Errorf("expected %d successes, got %d", stock, successes)
	}
	if insufficient != requests-stock {
		t.Errorf("expected %d insufficient-stock failures, got %d", requests-stock, insufficient)
	}
	if got := stockOf(t, store, "hot"); got != 0 {
		t.Errorf("expected final stock 0, got %d", got)
	}
}

func TestLedger_InterleavedReserveRelease_StaysWithinBounds(t *testing.T) {
	const seeded = 5
	ledger, store := newLedger(t)
	seedProduct(t, store, "p", seeded)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ledger.Reserve(context.Background(), "p", 2); err != nil {
				return
			}
			if got := stockOf(t, store, "p"); got < 0 || got > seeded {
				t.Errorf("stock out of bounds: %d", got)
			}
			if err := ledger.Release(context.Background(), "p", 2); err != nil {
				t.Errorf("release: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := stockOf(t, store, "p"); got != seeded {
		t.Errorf("expected stock back at %d, got %d", seeded, got)
	}
}
