package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kursatb/bomstock/internal/domain/orders"
)

func TestHistoryWorkbook(t *testing.T) {
	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	hist := []orders.Order{
		{
			ID: 2, ProductName: "Bracket", Quantity: 3, CreatedAt: ts,
			Details: []orders.Detail{
				{MaterialID: 10, MaterialName: "Steel", QuantityUsed: 9},
				{MaterialID: 11, MaterialName: "Paint", QuantityUsed: 3},
			},
		},
		{ID: 1, ProductName: "Service", Quantity: 5, CreatedAt: ts.Add(-time.Hour)},
	}

	var buf bytes.Buffer
	if err := History(&buf, hist); err != nil {
		t.Fatalf("export: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())

	cell := func(ref string) string {
		v, err := f.GetCellValue(sheet, ref)
		if err != nil {
			t.Fatalf("cell %s: %v", ref, err)
		}
		return v
	}

	if cell("A1") != "order_id" || cell("E1") != "material" {
		t.Fatalf("unexpected header: %q %q", cell("A1"), cell("E1"))
	}
	// заказ с двумя материалами занимает две строки
	if cell("A2") != "2" || cell("E2") != "Steel" || cell("F2") != "9" {
		t.Fatalf("unexpected first row: %q %q %q", cell("A2"), cell("E2"), cell("F2"))
	}
	if cell("A3") != "2" || cell("E3") != "Paint" {
		t.Fatalf("unexpected second row: %q %q", cell("A3"), cell("E3"))
	}
	// заказ без потребления — одна строка с пустыми колонками материала
	if cell("A4") != "1" || cell("E4") != "" {
		t.Fatalf("unexpected empty-bom row: %q %q", cell("A4"), cell("E4"))
	}
}
