// Package inventory owns product stock counters. Every change to a stock
// counter goes through a Ledger, and every reservation is a conditional
// decrement evaluated by the store itself, never a read-modify-write.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/bizdesk/backoffice/internal/core/domain"
	"github.com/bizdesk/backoffice/internal/core/ports"
)

// Ledger reserves and releases stock.
type Ledger struct {
	store ports.Store
	log   zerolog.Logger
}

func NewLedger(store ports.Store, log zerolog.Logger) *Ledger {
	return &Ledger{store: store, log: log}
}

// Reserve takes quantity units of a product in its own transaction.
func (l *Ledger) Reserve(ctx context.Context, productID string, quantity int) error {
	return l.ReserveBatch(ctx, []domain.StockLine{{ProductID: productID, Quantity: quantity}})
}

// ReserveBatch reserves every line or none of them.
func (l *Ledger) ReserveBatch(ctx context.Context, lines []domain.StockLine) error {
	return l.store.InTx(ctx, func(tx ports.Tx) error {
		return l.ReserveIn(ctx, tx, lines)
	})
}

// Release returns quantity units of a product in its own transaction.
func (l *Ledger) Release(ctx context.Context, productID string, quantity int) error {
	return l.ReleaseBatch(ctx, []domain.StockLine{{ProductID: productID, Quantity: quantity}})
}

// ReleaseBatch releases every line or none of them.
func (l *Ledger) ReleaseBatch(ctx context.Context, lines []domain.StockLine) error {
	return l.store.InTx(ctx, func(tx ports.Tx) error {
		return l.ReleaseIn(ctx, tx, lines)
	})
}

// Restock adds fresh units of a product and returns the updated product.
func (l *Ledger) Restock(ctx context.Context, productID string, quantity int) (*domain.Product, error) {
	if quantity <= 0 {
		return nil, domain.Validationf("restock quantity must be positive")
	}

	var product *domain.Product
	err := l.store.InTx(ctx, func(tx ports.Tx) error {
		ok, err := tx.IncrementStock(ctx, productID, quantity)
		if err != nil {
			return fmt.Errorf("restock %s: %w", productID, err)
		}
		if !ok {
			return domain.ErrProductNotFound
		}
		product, err = tx.FindProductByID(ctx, productID)
		return err
	})
	if err != nil {
		return nil, err
	}

	l.log.Info().Str("product_id", productID).Int("quantity", quantity).Int("stock", product.Stock).Msg("product restocked")
	return product, nil
}

// ReserveIn reserves every line inside the caller's transaction. When an
// error is returned some lines may already be decremented, so the caller
// must roll the transaction back.
func (l *Ledger) ReserveIn(ctx context.Context, tx ports.Tx, lines []domain.StockLine) error {
	merged, err := mergeLines(lines)
	if err != nil {
		return err
	}

	for _, line := range merged {
		ok, err := tx.DecrementStock(ctx, line.ProductID, line.Quantity)
		if err != nil {
			return fmt.Errorf("reserve %s: %w", line.ProductID, err)
		}
		if ok {
			continue
		}

		if _, err := tx.FindProductByID(ctx, line.ProductID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.Validationf("unknown product %s", line.ProductID)
			}
			return fmt.Errorf("reserve %s: %w", line.ProductID, err)
		}
		l.log.Warn().Str("product_id", line.ProductID).Int("requested", line.Quantity).Msg("insufficient stock")
		return fmt.Errorf("%w: product %s, requested %d", domain.ErrInsufficientStock, line.ProductID, line.Quantity)
	}
	return nil
}

// ReleaseIn releases every line inside the caller's transaction. Callers only
// release quantities they previously reserved.
func (l *Ledger) ReleaseIn(ctx context.Context, tx ports.Tx, lines []domain.StockLine) error {
	merged, err := mergeLines(lines)
	if err != nil {
		return err
	}

	for _, line := range merged {
		ok, err := tx.IncrementStock(ctx, line.ProductID, line.Quantity)
		if err != nil {
			return fmt.Errorf("release %s: %w", line.ProductID, err)
		}
		if !ok {
			return fmt.Errorf("release %s: %w", line.ProductID, domain.ErrProductNotFound)
		}
	}
	return nil
}

// mergeLines validates quantities, folds repeated products into one line and
// sorts by product id so concurrent batches lock rows in the same order.
func mergeLines(lines []domain.StockLine) ([]domain.StockLine, error) {
	if len(lines) == 0 {
		return nil, domain.Validationf("no stock lines")
	}

	totals := make(map[string]int, len(lines))
	for _, line := range lines {
		if line.ProductID == "" {
			return nil, domain.Validationf("product id is required")
		}
		if line.Quantity <= 0 {
			return nil, domain.Validationf("quantity must be positive for product %s", line.ProductID)
		}
		totals[line.ProductID] += line.Quantity
	}

	merged := make([]domain.StockLine, 0, len(totals))
	for id, qty := range totals {
		merged = append(merged, domain.StockLine{ProductID: id, Quantity: qty})
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].ProductID < merged[j].ProductID })
	return merged, nil
}
