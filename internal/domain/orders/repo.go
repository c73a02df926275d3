package orders

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kursatb/bomstock/internal/domain/stock"
)

type Repo struct {
	pool   *pgxpool.Pool
	ledger *stock.Ledger
}

func NewRepo(pool *pgxpool.Pool, ledger *stock.Ledger) *Repo {
	return &Repo{pool: pool, ledger: ledger}
}

// Commit — атомарный узел заказа: запись заказа, списание остатков через
// леджер и детали потребления коммитятся одной транзакцией. Любая ошибка
// откатывает всё, остатки не меняются.
func (r *Repo) Commit(ctx context.Context, o NewOrder) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// created_at не убывает с ростом id даже при сдвиге часов назад
	row := tx.QueryRow(ctx, `
		INSERT INTO orders (product_id, quantity, created_at)
		VALUES ($1, $2, GREATEST(now(), COALESCE((SELECT MAX(created_at) FROM orders), now())))
		RETURNING id
	`, o.ProductID, o.Quantity)

	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, err
	}

	if len(o.Lines) > 0 {
		needs := make(map[int64]int64, len(o.Lines))
		for _, ln := range o.Lines {
			needs[ln.MaterialID] = ln.Quantity
		}
		if err := r.ledger.DeductTx(ctx, tx, needs, fmt.Sprintf("order %d", id)); err != nil {
			return 0, err
		}
		for _, ln := range o.Lines {
			if _, err := tx.Exec(ctx, `
				INSERT INTO order_details (order_id, material_id, quantity_used)
				VALUES ($1,$2,$3)
			`, id, ln.MaterialID, ln.Quantity); err != nil {
				return 0, err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return id, nil
}

// ListHistory — заказы с потреблением, свежие сверху. created_at секундной
// точности, поэтому равные метки добиваются убыванием id. Удалённые продукты
// и материалы показываются заглушкой, история при этом не ломается.
func (r *Repo) ListHistory(ctx context.Context) ([]Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT o.id, o.product_id, COALESCE(p.name, $1), o.quantity, o.created_at,
		       d.material_id, COALESCE(m.name, $1), d.quantity_used
		FROM orders o
		LEFT JOIN products p ON p.id = o.product_id
		LEFT JOIN order_details d ON d.order_id = o.id
		LEFT JOIN materials m ON m.id = d.material_id
		ORDER BY o.created_at DESC, o.id DESC, d.material_id
	`, DeletedPlaceholder)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var (
			o       Order
			matID   *int64
			matName *string
			used    *int64
		)
		if err := rows.Scan(&o.ID, &o.ProductID, &o.ProductName, &o.Quantity, &o.CreatedAt,
			&matID, &matName, &used); err != nil {
			return nil, err
		}
		if len(out) == 0 || out[len(out)-1].ID != o.ID {
			out = append(out, o)
		}
		if matID != nil {
			last := &out[len(out)-1]
			last.Details = append(last.Details, Detail{
				MaterialID:   *matID,
				MaterialName: *matName,
				QuantityUsed: *used,
			})
		}
	}
	return out, rows.Err()
}
