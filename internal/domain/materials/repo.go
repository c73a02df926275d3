package materials

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}
	return name, nil
}

func (r *Repo) Create(ctx context.Context, name string, initialQty int64) (*Material, error) {
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}
	if initialQty < 0 {
		return nil, ErrNegativeQuantity
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO materials (name, quantity)
		VALUES ($1,$2)
		ON CONFLICT (name) DO NOTHING
		RETURNING id, name, quantity, created_at
	`, name, initialQty)

	var m Material
	if err := row.Scan(&m.ID, &m.Name, &m.Quantity, &m.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrDuplicateName
		}
		return nil, err
	}
	return &m, nil
}

func (r *Repo) GetByID(ctx context.Context, id int64) (*Material, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, quantity, created_at
		FROM materials WHERE id = $1
	`, id)
	var m Material
	if err := row.Scan(&m.ID, &m.Name, &m.Quantity, &m.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// List возвращает материалы в порядке id — порядок стабилен между вызовами.
func (r *Repo) List(ctx context.Context) ([]Material, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, quantity, created_at
		FROM materials
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Material
	for rows.Next() {
		var m Material
		if err := rows.Scan(&m.ID, &m.Name, &m.Quantity, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Delete удаляет материал; пока на него ссылается хоть одна строка BOM —
// отказ с ErrReferencedByBOM. Историческое потребление (order_details)
// удалению не мешает.
func (r *Repo) Delete(ctx context.Context, id int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var refs int64
	if err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM bom WHERE material_id = $1
	`, id).Scan(&refs); err != nil {
		return err
	}
	if refs > 0 {
		return ErrReferencedByBOM
	}

	tag, err := tx.Exec(ctx, `DELETE FROM materials WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return tx.Commit(ctx)
}
