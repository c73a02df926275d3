package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/kursatb/bomstock/internal/domain/orders"
)

// History выгружает историю заказов в xlsx: по строке на потреблённый
// материал, заказ без потребления — одной строкой с пустыми колонками.
func History(w io.Writer, hist []orders.Order) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())

	header := []interface{}{
		"order_id",
		"product",
		"quantity",
		"created_at",
		"material",
		"quantity_used",
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}

	row := 2
	for _, o := range hist {
		base := []interface{}{o.ID, o.ProductName, o.Quantity, o.CreatedAt.Format("2006-01-02 15:04:05")}
		if len(o.Details) == 0 {
			if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", row), &base); err != nil {
				return err
			}
			row++
			continue
		}
		for _, d := range o.Details {
			line := append(append([]interface{}{}, base...), d.MaterialName, d.QuantityUsed)
			if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", row), &line); err != nil {
				return err
			}
			row++
		}
	}

	return f.Write(w)
}
