package products

import (
	"errors"
	"time"
)

var (
	ErrEmptyName              = errors.New("products: empty name")
	ErrDuplicateName          = errors.New("products: name already exists")
	ErrNotFound               = errors.New("products: not found")
	ErrUnknownMaterial        = errors.New("products: bom references unknown material")
	ErrDuplicateMaterialInBOM = errors.New("products: material repeats within bom")
	ErrInvalidBOMQuantity     = errors.New("products: bom quantity must be positive")
)

type Product struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// BOMEntry — строка рецептуры: сколько материала уходит на единицу продукта.
// MaterialName заполняется при чтении, на записи игнорируется.
type BOMEntry struct {
	MaterialID   int64
	MaterialName string
	QtyPerUnit   int64
}

func validateEntries(entries []BOMEntry) error {
	seen := make(map[int64]struct{}, len(entries))
	for _, e := range entries {
		if e.QtyPerUnit <= 0 {
			return ErrInvalidBOMQuantity
		}
		if _, ok := seen[e.MaterialID]; ok {
			return ErrDuplicateMaterialInBOM
		}
		seen[e.MaterialID] = struct{}{}
	}
	return nil
}
