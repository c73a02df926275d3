package stock

import (
	"errors"
	"time"
)

var (
	// ErrConflict — условное списание не прошло: либо остатка не хватило,
	// либо материал исчез между проверкой и коммитом.
	ErrConflict = errors.New("stock: conditional deduction failed")

	ErrUnknownMaterial = errors.New("stock: unknown material")
)

type MovementKind string

const (
	MovementAdjust MovementKind = "adjust" // ручная корректировка
	MovementOrder  MovementKind = "order"  // списание под заказ
)

type Movement struct {
	ID         int64
	MaterialID int64
	Delta      int64
	Kind       MovementKind
	Note       string
	CreatedAt  time.Time
}
