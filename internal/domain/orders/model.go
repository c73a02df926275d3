package orders

import (
	"errors"
	"time"
)

var (
	ErrInvalidQuantity = errors.New("orders: quantity must be positive")
	ErrUnknownProduct  = errors.New("orders: unknown product")
	// ErrCorruptBOM — развёртка BOM содержит повторяющийся материал.
	// По инвариантам схемы такого быть не может, поэтому не сливаем
	// дубликаты молча, а отказываем.
	ErrCorruptBOM   = errors.New("orders: corrupt bom expansion")
	ErrCommitFailed = errors.New("orders: commit failed")
)

// DeletedPlaceholder подставляется вместо имени удалённого продукта или
// материала при чтении истории.
const DeletedPlaceholder = "(удалено)"

type Order struct {
	ID          int64
	ProductID   int64
	ProductName string
	Quantity    int64
	CreatedAt   time.Time
	Details     []Detail
}

type Detail struct {
	MaterialID   int64
	MaterialName string
	QuantityUsed int64
}

type Shortage struct {
	MaterialID   int64
	MaterialName string
	Missing      int64
}

// Line — итоговая потребность в материале на весь заказ.
type Line struct {
	MaterialID int64
	Quantity   int64
}

type NewOrder struct {
	ProductID int64
	Quantity  int64
	Lines     []Line
}

// Placement — исход размещения заказа: либо заказ закоммичен, либо
// отклонён со списком нехваток. Жёсткие сбои идут отдельным error.
type Placement struct {
	OrderID   int64
	Shortages []Shortage
}

func (p Placement) Committed() bool { return len(p.Shortages) == 0 }
