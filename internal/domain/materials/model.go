package materials

import (
	"errors"
	"time"
)

var (
	ErrEmptyName        = errors.New("materials: empty name")
	ErrNegativeQuantity = errors.New("materials: negative quantity")
	ErrDuplicateName    = errors.New("materials: name already exists")
	ErrReferencedByBOM  = errors.New("materials: referenced by a product BOM")
	ErrNotFound         = errors.New("materials: not found")
)

type Material struct {
	ID        int64
	Name      string
	Quantity  int64 // остаток; меняется только через stock.Ledger
	CreatedAt time.Time
}
