package stock

import (
	"context"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ledger — единственная точка изменения остатков. Каждая мутация пишет
// строку в журнал stock_movements в той же транзакции.
type Ledger struct{ pool *pgxpool.Pool }

func NewLedger(pool *pgxpool.Pool) *Ledger { return &Ledger{pool: pool} }

func (l *Ledger) Quantity(ctx context.Context, materialID int64) (int64, error) {
	var qty int64
	err := l.pool.QueryRow(ctx, `
		SELECT quantity FROM materials WHERE id = $1
	`, materialID).Scan(&qty)
	if err == pgx.ErrNoRows {
		return 0, ErrUnknownMaterial
	}
	return qty, err
}

func (l *Ledger) Quantities(ctx context.Context, ids []int64) (map[int64]int64, error) {
	out := make(map[int64]int64, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := l.pool.Query(ctx, `
		SELECT id, quantity FROM materials WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id, qty int64
		if err := rows.Scan(&id, &qty); err != nil {
			return nil, err
		}
		out[id] = qty
	}
	return out, rows.Err()
}

// Adjust — ручная корректировка, delta любого знака. Нижняя граница
// не проверяется: ввод доверенный, остаток может уйти в минус.
func (l *Ledger) Adjust(ctx context.Context, materialID, delta int64, note string) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE materials SET quantity = quantity + $2 WHERE id = $1
	`, materialID, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUnknownMaterial
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO stock_movements (material_id, delta, kind, note)
		VALUES ($1,$2,$3,$4)
	`, materialID, delta, string(MovementAdjust), note); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// DeductTx списывает материалы под заказ внутри чужой транзакции.
// Условный UPDATE с проверкой остатка защищает от двойного списания:
// проигравшая гонку транзакция получает ErrConflict и откатывается целиком.
func (l *Ledger) DeductTx(ctx context.Context, tx pgx.Tx, needs map[int64]int64, note string) error {
	ids := make([]int64, 0, len(needs))
	for id := range needs {
		ids = append(ids, id)
	}
	// фиксированный порядок обновлений, чтобы не ловить взаимные блокировки
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		need := needs[id]
		tag, err := tx.Exec(ctx, `
			UPDATE materials
			SET quantity = quantity - $2
			WHERE id = $1 AND quantity >= $2
		`, id, need)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrConflict
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO stock_movements (material_id, delta, kind, note)
			VALUES ($1,$2,$3,$4)
		`, id, -need, string(MovementOrder), note); err != nil {
			return err
		}
	}
	return nil
}

// Movements — последние движения по материалу, свежие сверху.
func (l *Ledger) Movements(ctx context.Context, materialID int64, limit int) ([]Movement, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.pool.Query(ctx, `
		SELECT id, material_id, delta, kind, note, created_at
		FROM stock_movements
		WHERE material_id = $1
		ORDER BY id DESC
		LIMIT $2
	`, materialID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Movement
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.MaterialID, &m.Delta, &m.Kind, &m.Note, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
