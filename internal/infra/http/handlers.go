package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/kursatb/bomstock/internal/domain/materials"
	"github.com/kursatb/bomstock/internal/domain/orders"
	"github.com/kursatb/bomstock/internal/domain/products"
	"github.com/kursatb/bomstock/internal/domain/stock"
	"github.com/kursatb/bomstock/internal/export"
	"github.com/kursatb/bomstock/internal/infra/metrics"
)

type MaterialStore interface {
	Create(ctx context.Context, name string, initialQty int64) (*materials.Material, error)
	List(ctx context.Context) ([]materials.Material, error)
	Delete(ctx context.Context, id int64) error
}

type StockLedger interface {
	Adjust(ctx context.Context, materialID, delta int64, note string) error
	Movements(ctx context.Context, materialID int64, limit int) ([]stock.Movement, error)
}

type ProductStore interface {
	Create(ctx context.Context, name string, entries []products.BOMEntry) (*products.Product, error)
	List(ctx context.Context) ([]products.Product, error)
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*products.Product, error)
	GetBOM(ctx context.Context, productID int64) ([]products.BOMEntry, error)
	SetBOM(ctx context.Context, productID int64, entries []products.BOMEntry) error
}

type OrderPlacer interface {
	Place(ctx context.Context, productID, qty int64) (orders.Placement, error)
}

type OrderHistory interface {
	ListHistory(ctx context.Context) ([]orders.Order, error)
}

// Handler — JSON-API для внешнего UI. Вся бизнес-логика живёт в домене,
// здесь только декодирование, маппинг ошибок и сериализация.
type Handler struct {
	log       *slog.Logger
	materials MaterialStore
	ledger    StockLedger
	products  ProductStore
	engine    OrderPlacer
	history   OrderHistory
}

func NewHandler(log *slog.Logger, m MaterialStore, l StockLedger, p ProductStore, e OrderPlacer, h OrderHistory) *Handler {
	return &Handler{log: log, materials: m, ledger: l, products: p, engine: e, history: h}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/materials", h.handleMaterials)
	mux.HandleFunc("/api/materials/adjust", h.handleMaterialAdjust)
	mux.HandleFunc("/api/materials/delete", h.handleMaterialDelete)
	mux.HandleFunc("/api/materials/movements", h.handleMovements)
	mux.HandleFunc("/api/products", h.handleProducts)
	mux.HandleFunc("/api/products/bom", h.handleProductBOM)
	mux.HandleFunc("/api/products/delete", h.handleProductDelete)
	mux.HandleFunc("/api/orders", h.handleOrders)
	mux.HandleFunc("/api/orders/export", h.handleOrdersExport)
}

/* Materials */

type materialResponse struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Quantity int64  `json:"quantity"`
}

func (h *Handler) handleMaterials(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		list, err := h.materials.List(r.Context())
		if err != nil {
			h.serverError(w, "list materials", err)
			return
		}
		out := make([]materialResponse, 0, len(list))
		for _, m := range list {
			out = append(out, materialResponse{ID: m.ID, Name: m.Name, Quantity: m.Quantity})
		}
		writeJSON(w, http.StatusOK, out)
	case http.MethodPost:
		var req struct {
			Name     string `json:"name"`
			Quantity int64  `json:"quantity"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		m, err := h.materials.Create(r.Context(), req.Name, req.Quantity)
		if err != nil {
			h.domainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, materialResponse{ID: m.ID, Name: m.Name, Quantity: m.Quantity})
	default:
		methodNotAllowed(w, "GET,POST")
	}
}

func (h *Handler) handleMaterialAdjust(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}
	var req struct {
		ID    int64  `json:"id"`
		Delta int64  `json:"delta"`
		Note  string `json:"note"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.ledger.Adjust(r.Context(), req.ID, req.Delta, req.Note); err != nil {
		h.domainError(w, err)
		return
	}
	metrics.StockAdjustments.Inc()
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleMaterialDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}
	var req struct {
		ID int64 `json:"id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.materials.Delete(r.Context(), req.ID); err != nil {
		h.domainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleMovements(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}
	id, ok := queryID(w, r, "id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := h.ledger.Movements(r.Context(), id, limit)
	if err != nil {
		h.serverError(w, "list movements", err)
		return
	}
	type movementResponse struct {
		ID        int64  `json:"id"`
		Delta     int64  `json:"delta"`
		Kind      string `json:"kind"`
		Note      string `json:"note,omitempty"`
		CreatedAt string `json:"created_at"`
	}
	out := make([]movementResponse, 0, len(list))
	for _, m := range list {
		out = append(out, movementResponse{
			ID: m.ID, Delta: m.Delta, Kind: string(m.Kind), Note: m.Note,
			CreatedAt: m.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

/* Products */

type bomEntryPayload struct {
	MaterialID   int64  `json:"material_id"`
	MaterialName string `json:"material_name,omitempty"`
	QtyPerUnit   int64  `json:"qty_per_unit"`
}

func toEntries(in []bomEntryPayload) []products.BOMEntry {
	out := make([]products.BOMEntry, 0, len(in))
	for _, e := range in {
		out = append(out, products.BOMEntry{MaterialID: e.MaterialID, QtyPerUnit: e.QtyPerUnit})
	}
	return out
}

func fromEntries(in []products.BOMEntry) []bomEntryPayload {
	out := make([]bomEntryPayload, 0, len(in))
	for _, e := range in {
		out = append(out, bomEntryPayload{MaterialID: e.MaterialID, MaterialName: e.MaterialName, QtyPerUnit: e.QtyPerUnit})
	}
	return out
}

func (h *Handler) handleProducts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		list, err := h.products.List(r.Context())
		if err != nil {
			h.serverError(w, "list products", err)
			return
		}
		type productResponse struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
		}
		out := make([]productResponse, 0, len(list))
		for _, p := range list {
			out = append(out, productResponse{ID: p.ID, Name: p.Name})
		}
		writeJSON(w, http.StatusOK, out)
	case http.MethodPost:
		var req struct {
			Name string            `json:"name"`
			BOM  []bomEntryPayload `json:"bom"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		p, err := h.products.Create(r.Context(), req.Name, toEntries(req.BOM))
		if err != nil {
			h.domainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"id": p.ID, "name": p.Name})
	default:
		methodNotAllowed(w, "GET,POST")
	}
}

func (h *Handler) handleProductBOM(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		id, ok := queryID(w, r, "id")
		if !ok {
			return
		}
		p, err := h.products.GetByID(r.Context(), id)
		if err != nil {
			h.serverError(w, "load product", err)
			return
		}
		if p == nil {
			writeError(w, http.StatusNotFound, "not_found", "unknown product")
			return
		}
		bom, err := h.products.GetBOM(r.Context(), id)
		if err != nil {
			h.serverError(w, "load bom", err)
			return
		}
		writeJSON(w, http.StatusOK, fromEntries(bom))
	case http.MethodPost:
		var req struct {
			ProductID int64             `json:"product_id"`
			Entries   []bomEntryPayload `json:"entries"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if err := h.products.SetBOM(r.Context(), req.ProductID, toEntries(req.Entries)); err != nil {
			h.domainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	default:
		methodNotAllowed(w, "GET,POST")
	}
}

func (h *Handler) handleProductDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}
	var req struct {
		ID int64 `json:"id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.products.Delete(r.Context(), req.ID); err != nil {
		h.domainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

/* Orders */

type shortageResponse struct {
	MaterialID   int64  `json:"material_id"`
	MaterialName string `json:"material_name"`
	Missing      int64  `json:"missing"`
}

type orderResponse struct {
	ID          int64                 `json:"id"`
	ProductID   int64                 `json:"product_id"`
	ProductName string                `json:"product_name"`
	Quantity    int64                 `json:"quantity"`
	CreatedAt   string                `json:"created_at"`
	Details     []orderDetailResponse `json:"details"`
}

type orderDetailResponse struct {
	MaterialID   int64  `json:"material_id"`
	MaterialName string `json:"material_name"`
	QuantityUsed int64  `json:"quantity_used"`
}

func toOrderResponse(o orders.Order) orderResponse {
	out := orderResponse{
		ID:          o.ID,
		ProductID:   o.ProductID,
		ProductName: o.ProductName,
		Quantity:    o.Quantity,
		CreatedAt:   o.CreatedAt.Format("2006-01-02 15:04:05"),
		Details:     make([]orderDetailResponse, 0, len(o.Details)),
	}
	for _, d := range o.Details {
		out.Details = append(out.Details, orderDetailResponse{
			MaterialID: d.MaterialID, MaterialName: d.MaterialName, QuantityUsed: d.QuantityUsed,
		})
	}
	return out
}

func (h *Handler) handleOrders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		list, err := h.history.ListHistory(r.Context())
		if err != nil {
			h.serverError(w, "list orders", err)
			return
		}
		out := make([]orderResponse, 0, len(list))
		for _, o := range list {
			out = append(out, toOrderResponse(o))
		}
		writeJSON(w, http.StatusOK, out)
	case http.MethodPost:
		var req struct {
			ProductID int64 `json:"product_id"`
			Quantity  int64 `json:"quantity"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		res, err := h.engine.Place(r.Context(), req.ProductID, req.Quantity)
		if err != nil {
			h.domainError(w, err)
			return
		}
		if !res.Committed() {
			// нехватка — не ошибка, а отрицательный бизнес-результат
			out := make([]shortageResponse, 0, len(res.Shortages))
			for _, s := range res.Shortages {
				out = append(out, shortageResponse{MaterialID: s.MaterialID, MaterialName: s.MaterialName, Missing: s.Missing})
			}
			writeJSON(w, http.StatusConflict, map[string]any{"shortages": out})
			return
		}
		writeJSON(w, http.StatusCreated, map[string]int64{"order_id": res.OrderID})
	default:
		methodNotAllowed(w, "GET,POST")
	}
}

func (h *Handler) handleOrdersExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}
	list, err := h.history.ListHistory(r.Context())
	if err != nil {
		h.serverError(w, "list orders", err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="orders.xlsx"`)
	if err := export.History(w, list); err != nil {
		h.log.Error("export orders failed", "err", err)
	}
}

/* Error mapping */

func queryID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid "+name+" parameter")
		return 0, false
	}
	return id, true
}

func (h *Handler) serverError(w http.ResponseWriter, op string, err error) {
	h.log.Error(op, "err", err)
	writeError(w, http.StatusInternalServerError, "internal", "")
}

// domainError переводит доменные ошибки в HTTP-статусы:
// невалидный ввод → 400, неизвестная ссылка → 404, конфликт → 409.
func (h *Handler) domainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, materials.ErrEmptyName),
		errors.Is(err, materials.ErrNegativeQuantity),
		errors.Is(err, products.ErrEmptyName),
		errors.Is(err, products.ErrInvalidBOMQuantity),
		errors.Is(err, orders.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, materials.ErrNotFound),
		errors.Is(err, products.ErrNotFound),
		errors.Is(err, products.ErrUnknownMaterial),
		errors.Is(err, stock.ErrUnknownMaterial),
		errors.Is(err, orders.ErrUnknownProduct):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, materials.ErrDuplicateName),
		errors.Is(err, products.ErrDuplicateName),
		errors.Is(err, products.ErrDuplicateMaterialInBOM),
		errors.Is(err, materials.ErrReferencedByBOM):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	default:
		h.serverError(w, "request failed", err)
	}
}
