package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kursatb/bomstock/internal/domain/products"
	"github.com/kursatb/bomstock/internal/domain/stock"
	"github.com/kursatb/bomstock/internal/infra/metrics"
)

type ProductSource interface {
	GetByID(ctx context.Context, id int64) (*products.Product, error)
	GetBOM(ctx context.Context, productID int64) ([]products.BOMEntry, error)
}

type StockReader interface {
	Quantities(ctx context.Context, ids []int64) (map[int64]int64, error)
}

type Committer interface {
	Commit(ctx context.Context, o NewOrder) (int64, error)
}

// Engine размещает заказы: развёртка BOM, проверка остатков, атомарный
// коммит. Единственный компонент, который списывает остатки — и только
// через stock.Ledger внутри транзакции коммита.
type Engine struct {
	products ProductSource
	stock    StockReader
	orders   Committer
	log      *slog.Logger
}

func NewEngine(products ProductSource, stock StockReader, orders Committer, log *slog.Logger) *Engine {
	return &Engine{products: products, stock: stock, orders: orders, log: log}
}

// Place — Pending → Committed | Rejected(shortages) | Failed(err).
// Промежуточных персистентных состояний нет: частично закоммиченный заказ
// снаружи не наблюдаем.
func (e *Engine) Place(ctx context.Context, productID, qty int64) (Placement, error) {
	if qty <= 0 {
		return Placement{}, ErrInvalidQuantity
	}

	p, err := e.products.GetByID(ctx, productID)
	if err != nil {
		return Placement{}, fmt.Errorf("load product: %w", err)
	}
	if p == nil {
		return Placement{}, ErrUnknownProduct
	}

	bom, err := e.products.GetBOM(ctx, productID)
	if err != nil {
		return Placement{}, fmt.Errorf("load bom: %w", err)
	}
	lines, names, err := expand(bom, qty)
	if err != nil {
		return Placement{}, err
	}

	for attempt := 0; ; attempt++ {
		shortages, err := e.check(ctx, lines, names)
		if err != nil {
			return Placement{}, fmt.Errorf("check stock: %w", err)
		}
		if len(shortages) > 0 {
			metrics.OrdersRejected.Inc()
			e.log.Info("order rejected", "product_id", productID, "qty", qty, "shortages", len(shortages))
			return Placement{Shortages: shortages}, nil
		}

		id, err := e.orders.Commit(ctx, NewOrder{ProductID: productID, Quantity: qty, Lines: lines})
		if err == nil {
			metrics.OrdersCommitted.Inc()
			e.log.Info("order committed", "order_id", id, "product_id", productID, "qty", qty)
			return Placement{OrderID: id}, nil
		}
		if errors.Is(err, stock.ErrConflict) && attempt == 0 {
			// проиграли гонку за остаток — перечитываем и либо отдаём
			// нехватку, либо пробуем коммит ещё раз
			continue
		}
		metrics.OrdersFailed.Inc()
		e.log.Error("order commit failed", "product_id", productID, "qty", qty, "err", err)
		return Placement{}, fmt.Errorf("%w: %v", ErrCommitFailed, err)
	}
}

// expand переводит BOM в итоговые потребности заказа.
func expand(bom []products.BOMEntry, qty int64) ([]Line, map[int64]string, error) {
	lines := make([]Line, 0, len(bom))
	names := make(map[int64]string, len(bom))
	for _, e := range bom {
		if _, ok := names[e.MaterialID]; ok {
			return nil, nil, ErrCorruptBOM
		}
		names[e.MaterialID] = e.MaterialName
		lines = append(lines, Line{MaterialID: e.MaterialID, Quantity: e.QtyPerUnit * qty})
	}
	return lines, names, nil
}

func (e *Engine) check(ctx context.Context, lines []Line, names map[int64]string) ([]Shortage, error) {
	if len(lines) == 0 {
		return nil, nil
	}
	ids := make([]int64, 0, len(lines))
	for _, ln := range lines {
		ids = append(ids, ln.MaterialID)
	}
	have, err := e.stock.Quantities(ctx, ids)
	if err != nil {
		return nil, err
	}

	var out []Shortage
	for _, ln := range lines {
		if cur := have[ln.MaterialID]; cur < ln.Quantity {
			out = append(out, Shortage{
				MaterialID:   ln.MaterialID,
				MaterialName: names[ln.MaterialID],
				Missing:      ln.Quantity - cur,
			})
		}
	}
	return out, nil
}
