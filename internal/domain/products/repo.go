package products

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

// Create создаёт продукт вместе с его BOM одной транзакцией.
// Пустой entries допустим: продукт без рецептуры — вырожденный, но легальный.
func (r *Repo) Create(ctx context.Context, name string, entries []BOMEntry) (*Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	if err := validateEntries(entries); err != nil {
		return nil, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		INSERT INTO products (name)
		VALUES ($1)
		ON CONFLICT (name) DO NOTHING
		RETURNING id, name, created_at
	`, name)

	var p Product
	if err := row.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrDuplicateName
		}
		return nil, err
	}

	if err := insertBOM(ctx, tx, p.ID, entries); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &p, nil
}

func insertBOM(ctx context.Context, tx pgx.Tx, productID int64, entries []BOMEntry) error {
	for _, e := range entries {
		if _, err := tx.Exec(ctx, `
			INSERT INTO bom (product_id, material_id, qty_per_unit)
			VALUES ($1,$2,$3)
		`, productID, e.MaterialID, e.QtyPerUnit); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23503" {
				return ErrUnknownMaterial
			}
			return err
		}
	}
	return nil
}

// SetBOM заменяет рецептуру продукта целиком.
func (r *Repo) SetBOM(ctx context.Context, productID int64, entries []BOMEntry) error {
	if err := validateEntries(entries); err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var one int
	if err := tx.QueryRow(ctx, `
		SELECT 1 FROM products WHERE id = $1 FOR UPDATE
	`, productID).Scan(&one); err != nil {
		if err == pgx.ErrNoRows {
			return ErrNotFound
		}
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM bom WHERE product_id = $1`, productID); err != nil {
		return err
	}
	if err := insertBOM(ctx, tx, productID, entries); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetBOM возвращает рецептуру в порядке material_id; пустой срез, если
// рецептуры нет (или продукта нет — различают по GetByID).
func (r *Repo) GetBOM(ctx context.Context, productID int64) ([]BOMEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT b.material_id, m.name, b.qty_per_unit
		FROM bom b
		JOIN materials m ON m.id = b.material_id
		WHERE b.product_id = $1
		ORDER BY b.material_id
	`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BOMEntry
	for rows.Next() {
		var e BOMEntry
		if err := rows.Scan(&e.MaterialID, &e.MaterialName, &e.QtyPerUnit); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *Repo) GetByID(ctx context.Context, id int64) (*Product, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, created_at
		FROM products WHERE id = $1
	`, id)
	var p Product
	if err := row.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *Repo) List(ctx context.Context) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, created_at
		FROM products
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Delete удаляет продукт и каскадом его BOM. Историю заказов не трогаем:
// записи остаются с "висячей" ссылкой, читатель истории подставляет заглушку.
func (r *Repo) Delete(ctx context.Context, id int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM bom WHERE product_id = $1`, id); err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return tx.Commit(ctx)
}
