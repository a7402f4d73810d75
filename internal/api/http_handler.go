package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"pos-inventory-service/internal/domain"
	"pos-inventory-service/internal/legacy"
	"pos-inventory-service/internal/migration"
	"pos-inventory-service/internal/pricing"
	"pos-inventory-service/internal/repair"
	"pos-inventory-service/internal/store"
)

// HTTPHandler holds dependencies for HTTP handlers.
type HTTPHandler struct {
	productStore store.ProductStorer
	resolver     *pricing.Resolver
	mapper       *legacy.Mapper
	migrator     *migration.Service
	repairer     *repair.Repairer
	validate     *validator.Validate
	logger       zerolog.Logger
}

// NewHTTPHandler creates a new HTTPHandler with dependencies.
func NewHTTPHandler(ps store.ProductStorer, mapper *legacy.Mapper, migrator *migration.Service, repairer *repair.Repairer, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		productStore: ps,
		resolver:     pricing.NewResolver(),
		mapper:       mapper,
		migrator:     migrator,
		repairer:     repairer,
		validate:     validator.New(),
		logger:       logger.With().Str("component", "http").Logger(),
	}
}

// --- Helpers ---

// ErrorResponse defines the structure for JSON error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (h *HTTPHandler) respondWithError(w http.ResponseWriter, code int, message string) {
	h.respondWithJSON(w, code, ErrorResponse{Error: message})
}

func (h *HTTPHandler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil { // Avoid writing empty body for 204 No Content
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			h.logger.Error().Err(err).Msg("failed to encode JSON response")
		}
	}
}

// decodeJSON reads the request body into v and writes a 400 on failure.
func (h *HTTPHandler) decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return false
	}
	return true
}

func productIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "productId"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid product ID format")
	}
	return id, nil
}

// checkTiers rejects tiered prices or costs whose tier count differs from the reference
// quantities. A single value is a flat per-unit amount and is always accepted.
func checkTiers(quantities, prices, costs *string) error {
	want := tierCount(quantities)
	for _, s := range []*string{prices, costs} {
		if n := tierCount(s); n > 1 && n != want {
			return errors.New("suggested_price and cost must have as many tiers as reference_quantity")
		}
	}
	return nil
}

func tierCount(s *string) int {
	if s == nil {
		return 0
	}
	return len(pricing.Split(*s))
}

// --- Product Handlers ---

// ProductInput defines the expected input for creating or updating a product.
type ProductInput struct {
	Name              string  `json:"name" validate:"required,max=255"`
	UnitKind          string  `json:"unit_kind" validate:"required,oneof=g ml unit"`
	Stock             int32   `json:"stock" validate:"gte=0"`
	Price             float64 `json:"price" validate:"gte=0"`
	SuggestedPrice    *string `json:"suggested_price" validate:"omitempty,max=255"`
	Cost              *string `json:"cost" validate:"omitempty,max=255"`
	ReferenceQuantity *string `json:"reference_quantity" validate:"omitempty,max=255"`
}

func (in ProductInput) product(id int64) *domain.Product {
	return &domain.Product{
		ID:                id,
		Name:              strings.TrimSpace(in.Name),
		UnitKind:          domain.UnitKind(in.UnitKind),
		Stock:             in.Stock,
		Price:             in.Price,
		SuggestedPrice:    in.SuggestedPrice,
		Cost:              in.Cost,
		ReferenceQuantity: in.ReferenceQuantity,
	}
}

func (h *HTTPHandler) readProductInput(w http.ResponseWriter, r *http.Request) (ProductInput, bool) {
	var input ProductInput
	if !h.decodeJSON(w, r, &input) {
		return input, false
	}
	if err := h.validate.Struct(input); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return input, false
	}
	if err := checkTiers(input.ReferenceQuantity, input.SuggestedPrice, input.Cost); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return input, false
	}
	return input, true
}

func (h *HTTPHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	input, ok := h.readProductInput(w, r)
	if !ok {
		return
	}

	created, err := h.productStore.CreateProduct(r.Context(), input.product(0))
	if err != nil {
		h.logger.Error().Err(err).Msg("CreateProduct store operation failed")
		if errors.Is(err, store.ErrProductNameExists) {
			h.respondWithError(w, http.StatusConflict, store.ErrProductNameExists.Error())
		} else {
			h.respondWithError(w, http.StatusInternalServerError, "Failed to create product")
		}
		return
	}
	h.respondWithJSON(w, http.StatusCreated, created)
}

type pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

// ProductListResponse is the paginated product listing.
type ProductListResponse struct {
	Data       []domain.Product `json:"data"`
	Pagination pagination       `json:"pagination"`
}

func (h *HTTPHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	qParams := r.URL.Query()

	limit, err := strconv.Atoi(qParams.Get("limit"))
	if err != nil || limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	page, err := strconv.Atoi(qParams.Get("page"))
	if err != nil || page <= 0 {
		page = 1
	}
	params := store.ListProductsParams{Limit: limit, Offset: (page - 1) * limit}

	if q := qParams.Get("q"); q != "" {
		params.SearchQuery = &q
	}
	if kind := qParams.Get("unit_kind"); kind != "" {
		k := domain.UnitKind(kind)
		if !k.Valid() {
			h.respondWithError(w, http.StatusBadRequest, "Invalid unit_kind value. Allowed: g, ml, unit")
			return
		}
		params.UnitKind = &k
	}
	if inStock := qParams.Get("in_stock"); inStock != "" {
		b, err := strconv.ParseBool(inStock)
		if err != nil {
			h.respondWithError(w, http.StatusBadRequest, "Invalid in_stock value: must be true or false")
			return
		}
		params.InStock = &b
	}
	if ids := qParams.Get("ids"); ids != "" {
		for _, raw := range strings.Split(ids, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
			if err != nil || id <= 0 {
				h.respondWithError(w, http.StatusBadRequest, "Invalid ids value: must be comma-separated product IDs")
				return
			}
			params.ProductIDs = append(params.ProductIDs, id)
		}
	}

	params.SortBy = qParams.Get("sort_by")
	params.SortOrder = qParams.Get("sort_order")
	switch params.SortBy {
	case "", "name", "price", "stock", "created_at":
	default:
		h.respondWithError(w, http.StatusBadRequest, "Invalid sort_by field. Allowed: name, price, stock, created_at")
		return
	}
	if o := strings.ToLower(params.SortOrder); o != "" && o != "asc" && o != "desc" {
		h.respondWithError(w, http.StatusBadRequest, "Invalid sort_order value. Allowed: asc, desc")
		return
	}

	products, totalCount, err := h.productStore.ListProducts(r.Context(), params)
	if err != nil {
		h.logger.Error().Err(err).Msg("ListProducts store operation failed")
		h.respondWithError(w, http.StatusInternalServerError, "Failed to retrieve products")
		return
	}
	if products == nil {
		products = []domain.Product{}
	}

	totalPages := 0
	if totalCount > 0 {
		totalPages = (totalCount + limit - 1) / limit
	}
	h.respondWithJSON(w, http.StatusOK, ProductListResponse{
		Data:       products,
		Pagination: pagination{Page: page, Limit: limit, TotalItems: totalCount, TotalPages: totalPages},
	})
}

func (h *HTTPHandler) GetProductByID(w http.ResponseWriter, r *http.Request) {
	productID, err := productIDParam(r)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid product ID format")
		return
	}
	product, ok := h.loadProduct(w, r, productID)
	if !ok {
		return
	}
	h.respondWithJSON(w, http.StatusOK, product)
}

func (h *HTTPHandler) loadProduct(w http.ResponseWriter, r *http.Request, productID int64) (*domain.Product, bool) {
	product, err := h.productStore.GetProductByID(r.Context(), productID)
	if err != nil {
		if errors.Is(err, store.ErrProductNotFound) {
			h.respondWithError(w, http.StatusNotFound, store.ErrProductNotFound.Error())
		} else {
			h.logger.Error().Err(err).Int64("product_id", productID).Msg("GetProductByID store operation failed")
			h.respondWithError(w, http.StatusInternalServerError, "Failed to retrieve product")
		}
		return nil, false
	}
	return product, true
}

func (h *HTTPHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := productIDParam(r)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid product ID format")
		return
	}
	input, ok := h.readProductInput(w, r)
	if !ok {
		return
	}

	updated, err := h.productStore.UpdateProduct(r.Context(), input.product(productID))
	if err != nil {
		h.logger.Error().Err(err).Int64("product_id", productID).Msg("UpdateProduct store operation failed")
		switch {
		case errors.Is(err, store.ErrProductNotFound):
			h.respondWithError(w, http.StatusNotFound, store.ErrProductNotFound.Error())
		case errors.Is(err, store.ErrProductNameExists):
			h.respondWithError(w, http.StatusConflict, store.ErrProductNameExists.Error())
		default:
			h.respondWithError(w, http.StatusInternalServerError, "Failed to update product")
		}
		return
	}
	h.respondWithJSON(w, http.StatusOK, updated)
}

func (h *HTTPHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := productIDParam(r)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid product ID format")
		return
	}

	if err := h.productStore.DeleteProduct(r.Context(), productID); err != nil {
		if errors.Is(err, store.ErrProductNotFound) {
			h.respondWithError(w, http.StatusNotFound, store.ErrProductNotFound.Error())
		} else {
			h.logger.Error().Err(err).Int64("product_id", productID).Msg("DeleteProduct store operation failed")
			h.respondWithError(w, http.StatusInternalServerError, "Failed to delete product")
		}
		return
	}
	h.respondWithJSON(w, http.StatusNoContent, nil)
}

// StockUpdateInput adjusts stock by a signed amount.
type StockUpdateInput struct {
	QuantityChange int32 `json:"quantity_change" validate:"ne=0"`
}

func (h *HTTPHandler) UpdateStock(w http.ResponseWriter, r *http.Request) {
	productID, err := productIDParam(r)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid product ID format")
		return
	}
	var input StockUpdateInput
	if !h.decodeJSON(w, r, &input) {
		return
	}
	if err := h.validate.Struct(input); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	updated, err := h.productStore.UpdateStock(r.Context(), productID, input.QuantityChange)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrProductNotFound):
			h.respondWithError(w, http.StatusNotFound, store.ErrProductNotFound.Error())
		case errors.Is(err, store.ErrInsufficientStock):
			h.respondWithError(w, http.StatusConflict, store.ErrInsufficientStock.Error())
		default:
			h.logger.Error().Err(err).Int64("product_id", productID).Msg("UpdateStock store operation failed")
			h.respondWithError(w, http.StatusInternalServerError, "Failed to update stock")
		}
		return
	}
	h.respondWithJSON(w, http.StatusOK, updated)
}

// QuoteProduct prices ?quantity= units of a product from its tier tables.
func (h *HTTPHandler) QuoteProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := productIDParam(r)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid product ID format")
		return
	}
	qty, err := strconv.ParseFloat(r.URL.Query().Get("quantity"), 64)
	if err != nil || qty <= 0 {
		h.respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid quantity %q: must be a number greater than 0", r.URL.Query().Get("quantity")))
		return
	}

	product, ok := h.loadProduct(w, r, productID)
	if !ok {
		return
	}
	h.respondWithJSON(w, http.StatusOK, h.resolver.Quote(*product, qty))
}

// --- Route Registration ---

// RegisterRoutes sets up the HTTP routes for the service.
func (h *HTTPHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/products", func(r chi.Router) {
		r.Post("/", h.CreateProduct) // POST /api/v1/products
		r.Get("/", h.ListProducts)   // GET /api/v1/products

		r.Route("/{productId}", func(r chi.Router) {
			r.Get("/", h.GetProductByID)
			r.Put("/", h.UpdateProduct)
			r.Delete("/", h.DeleteProduct)
			r.Patch("/stock", h.UpdateStock) // PATCH /api/v1/products/{productId}/stock
			r.Get("/quote", h.QuoteProduct)  // GET /api/v1/products/{productId}/quote?quantity=
		})
	})

	r.Route("/api/v1/catalog", func(r chi.Router) {
		r.Get("/categories", h.ListCatalogCategories)
		r.Get("/map", h.MapLegacyName)
		r.Post("/navigate", h.Navigate)
		r.Get("/products/{name}/sizes", h.ListProductSizes)
		r.Get("/products/{name}/price", h.GetCatalogPrice)
	})

	r.Route("/api/v1/migration", func(r chi.Router) {
		r.Post("/cart-items", h.MigrateCartItems)
		r.Post("/orders", h.MigrateOrders)
		r.Post("/validate", h.ValidateMigratedData)
		r.Get("/status", h.MigrationStatus)
		r.Post("/run", h.RunMigration)
		r.Post("/backup", h.CreateBackup)
	})

	r.Post("/api/v1/repair/cart-item", h.RepairCartItem)
	r.Post("/api/v1/repair/order", h.RepairOrder)
	r.Post("/api/v1/validate/cart-item", h.ValidateCartItem)
	r.Post("/api/v1/validate/size", h.ValidateSize)
}
