package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kursatb/bomstock/internal/domain/materials"
	"github.com/kursatb/bomstock/internal/domain/orders"
	"github.com/kursatb/bomstock/internal/domain/products"
	"github.com/kursatb/bomstock/internal/domain/stock"
)

type fakeMaterials struct {
	nextID int64
	items  map[int64]materials.Material
	bomRef map[int64]bool
}

func newFakeMaterials() *fakeMaterials {
	return &fakeMaterials{items: map[int64]materials.Material{}, bomRef: map[int64]bool{}}
}

func (f *fakeMaterials) Create(_ context.Context, name string, qty int64) (*materials.Material, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, materials.ErrEmptyName
	}
	if qty < 0 {
		return nil, materials.ErrNegativeQuantity
	}
	for _, m := range f.items {
		if m.Name == name {
			return nil, materials.ErrDuplicateName
		}
	}
	f.nextID++
	m := materials.Material{ID: f.nextID, Name: name, Quantity: qty}
	f.items[m.ID] = m
	return &m, nil
}

func (f *fakeMaterials) List(_ context.Context) ([]materials.Material, error) {
	out := make([]materials.Material, 0, len(f.items))
	for _, m := range f.items {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeMaterials) Delete(_ context.Context, id int64) error {
	if f.bomRef[id] {
		return materials.ErrReferencedByBOM
	}
	if _, ok := f.items[id]; !ok {
		return materials.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

type fakeLedger struct {
	mats      *fakeMaterials
	movements []stock.Movement
}

func (f *fakeLedger) Adjust(_ context.Context, id, delta int64, note string) error {
	m, ok := f.mats.items[id]
	if !ok {
		return stock.ErrUnknownMaterial
	}
	m.Quantity += delta
	f.mats.items[id] = m
	f.movements = append(f.movements, stock.Movement{
		ID: int64(len(f.movements) + 1), MaterialID: id, Delta: delta,
		Kind: stock.MovementAdjust, Note: note, CreatedAt: time.Now(),
	})
	return nil
}

func (f *fakeLedger) Movements(_ context.Context, id int64, _ int) ([]stock.Movement, error) {
	var out []stock.Movement
	for i := len(f.movements) - 1; i >= 0; i-- {
		if f.movements[i].MaterialID == id {
			out = append(out, f.movements[i])
		}
	}
	return out, nil
}

type fakeProducts struct {
	nextID int64
	items  map[int64]products.Product
	boms   map[int64][]products.BOMEntry
}

func newFakeProducts() *fakeProducts {
	return &fakeProducts{items: map[int64]products.Product{}, boms: map[int64][]products.BOMEntry{}}
}

func (f *fakeProducts) Create(_ context.Context, name string, entries []products.BOMEntry) (*products.Product, error) {
	for _, p := range f.items {
		if p.Name == name {
			return nil, products.ErrDuplicateName
		}
	}
	f.nextID++
	p := products.Product{ID: f.nextID, Name: name}
	f.items[p.ID] = p
	f.boms[p.ID] = entries
	return &p, nil
}

func (f *fakeProducts) List(_ context.Context) ([]products.Product, error) {
	out := make([]products.Product, 0, len(f.items))
	for _, p := range f.items {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeProducts) Delete(_ context.Context, id int64) error {
	if _, ok := f.items[id]; !ok {
		return products.ErrNotFound
	}
	delete(f.items, id)
	delete(f.boms, id)
	return nil
}

func (f *fakeProducts) GetByID(_ context.Context, id int64) (*products.Product, error) {
	if p, ok := f.items[id]; ok {
		return &p, nil
	}
	return nil, nil
}

func (f *fakeProducts) GetBOM(_ context.Context, id int64) ([]products.BOMEntry, error) {
	return f.boms[id], nil
}

func (f *fakeProducts) SetBOM(_ context.Context, id int64, entries []products.BOMEntry) error {
	if _, ok := f.items[id]; !ok {
		return products.ErrNotFound
	}
	f.boms[id] = entries
	return nil
}

type fakePlacer struct {
	res orders.Placement
	err error
}

func (f *fakePlacer) Place(_ context.Context, _, _ int64) (orders.Placement, error) {
	return f.res, f.err
}

type fakeHistory struct{ list []orders.Order }

func (f *fakeHistory) ListHistory(_ context.Context) ([]orders.Order, error) {
	return f.list, nil
}

type fixture struct {
	mats    *fakeMaterials
	ledger  *fakeLedger
	prods   *fakeProducts
	placer  *fakePlacer
	history *fakeHistory
	handler *Handler
}

func newFixture() *fixture {
	mats := newFakeMaterials()
	ledger := &fakeLedger{mats: mats}
	prods := newFakeProducts()
	placer := &fakePlacer{}
	history := &fakeHistory{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &fixture{
		mats: mats, ledger: ledger, prods: prods, placer: placer, history: history,
		handler: NewHandler(log, mats, ledger, prods, placer, history),
	}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	w := httptest.NewRecorder()
	mux := http.NewServeMux()
	f.handler.Register(mux)
	mux.ServeHTTP(w, req)
	return w
}

func TestMaterialsCreateAndList(t *testing.T) {
	f := newFixture()

	w := f.do(t, http.MethodPost, "/api/materials", `{"name":"Steel","quantity":10}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodGet, "/api/materials", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var list []materialResponse
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 1 || list[0].Name != "Steel" || list[0].Quantity != 10 {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestMaterialsDuplicateName(t *testing.T) {
	f := newFixture()
	f.do(t, http.MethodPost, "/api/materials", `{"name":"Steel","quantity":10}`)

	w := f.do(t, http.MethodPost, "/api/materials", `{"name":"Steel","quantity":1}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestMaterialsEmptyName(t *testing.T) {
	f := newFixture()
	w := f.do(t, http.MethodPost, "/api/materials", `{"name":"  ","quantity":1}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestMaterialDeleteReferencedByBOM(t *testing.T) {
	f := newFixture()
	f.do(t, http.MethodPost, "/api/materials", `{"name":"Steel","quantity":10}`)
	f.mats.bomRef[1] = true

	w := f.do(t, http.MethodPost, "/api/materials/delete", `{"id":1}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}

	f.mats.bomRef[1] = false
	w = f.do(t, http.MethodPost, "/api/materials/delete", `{"id":1}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestMaterialAdjustAndMovements(t *testing.T) {
	f := newFixture()
	f.do(t, http.MethodPost, "/api/materials", `{"name":"Steel","quantity":10}`)

	w := f.do(t, http.MethodPost, "/api/materials/adjust", `{"id":1,"delta":-4,"note":"поправка"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if f.mats.items[1].Quantity != 6 {
		t.Fatalf("expected quantity 6, got %d", f.mats.items[1].Quantity)
	}

	w = f.do(t, http.MethodPost, "/api/materials/adjust", `{"id":99,"delta":1}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}

	w = f.do(t, http.MethodGet, "/api/materials/movements?id=1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"delta":-4`) {
		t.Fatalf("movement missing: %s", w.Body.String())
	}
}

func TestProductBOMRoundTrip(t *testing.T) {
	f := newFixture()
	w := f.do(t, http.MethodPost, "/api/products",
		`{"name":"Bracket","bom":[{"material_id":1,"qty_per_unit":3},{"material_id":2,"qty_per_unit":1}]}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodGet, "/api/products/bom?id=1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var bom []bomEntryPayload
	if err := json.Unmarshal(w.Body.Bytes(), &bom); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(bom) != 2 || bom[0].MaterialID != 1 || bom[0].QtyPerUnit != 3 {
		t.Fatalf("unexpected bom: %+v", bom)
	}

	w = f.do(t, http.MethodGet, "/api/products/bom?id=42", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown product, got %d", w.Code)
	}
}

func TestPlaceOrderCommitted(t *testing.T) {
	f := newFixture()
	f.placer.res = orders.Placement{OrderID: 7}

	w := f.do(t, http.MethodPost, "/api/orders", `{"product_id":1,"quantity":3}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]int64
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["order_id"] != 7 {
		t.Fatalf("expected order_id 7, got %v", resp)
	}
}

func TestPlaceOrderShortage(t *testing.T) {
	f := newFixture()
	f.placer.res = orders.Placement{Shortages: []orders.Shortage{
		{MaterialID: 1, MaterialName: "Steel", Missing: 2},
	}}

	w := f.do(t, http.MethodPost, "/api/orders", `{"product_id":1,"quantity":3}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	var resp struct {
		Shortages []shortageResponse `json:"shortages"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Shortages) != 1 || resp.Shortages[0].MaterialName != "Steel" || resp.Shortages[0].Missing != 2 {
		t.Fatalf("unexpected shortages: %+v", resp.Shortages)
	}
}

func TestPlaceOrderErrors(t *testing.T) {
	f := newFixture()

	f.placer.err = orders.ErrUnknownProduct
	if w := f.do(t, http.MethodPost, "/api/orders", `{"product_id":9,"quantity":3}`); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}

	f.placer.err = orders.ErrInvalidQuantity
	if w := f.do(t, http.MethodPost, "/api/orders", `{"product_id":1,"quantity":0}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestOrderHistoryListing(t *testing.T) {
	f := newFixture()
	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	f.history.list = []orders.Order{
		{
			ID: 2, ProductID: 1, ProductName: orders.DeletedPlaceholder, Quantity: 1, CreatedAt: ts,
			Details: []orders.Detail{{MaterialID: 1, MaterialName: "Steel", QuantityUsed: 3}},
		},
		{ID: 1, ProductID: 2, ProductName: "Service", Quantity: 5, CreatedAt: ts.Add(-time.Hour)},
	}

	w := f.do(t, http.MethodGet, "/api/orders", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var list []orderResponse
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 2 || list[0].ID != 2 || list[0].ProductName != orders.DeletedPlaceholder {
		t.Fatalf("unexpected history: %+v", list)
	}
	if len(list[1].Details) != 0 {
		t.Fatalf("empty-bom order must have no details: %+v", list[1])
	}
}

func TestOrdersExport(t *testing.T) {
	f := newFixture()
	f.history.list = []orders.Order{
		{ID: 1, ProductName: "Bracket", Quantity: 2, CreatedAt: time.Now(),
			Details: []orders.Detail{{MaterialID: 1, MaterialName: "Steel", QuantityUsed: 6}}},
	}

	w := f.do(t, http.MethodGet, "/api/orders/export", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "spreadsheet") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if _, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes())); err != nil {
		t.Fatalf("body is not a workbook: %v", err)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture()
	w := f.do(t, http.MethodDelete, "/api/materials", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
	if w.Header().Get("Allow") != "GET,POST" {
		t.Fatalf("unexpected Allow header %q", w.Header().Get("Allow"))
	}
}
