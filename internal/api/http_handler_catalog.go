package api

import (
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"pos-inventory-service/internal/catalog"
	"pos-inventory-service/internal/domain"
)

// --- Catalog Handlers ---

// CategoriesResponse lists the catalog categories. Fallback is set when the catalog is
// unavailable and the synthetic category is served instead.
type CategoriesResponse struct {
	Categories []catalog.Category `json:"categories"`
	Fallback   bool               `json:"fallback"`
}

func (h *HTTPHandler) ListCatalogCategories(w http.ResponseWriter, r *http.Request) {
	h.respondWithJSON(w, http.StatusOK, CategoriesResponse{
		Categories: h.repairer.Categories(),
		Fallback:   !h.repairer.IsCategoryConfigAvailable(),
	})
}

// MapLegacyName shows where ?name= lands in the catalog.
func (h *HTTPHandler) MapLegacyName(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if strings.TrimSpace(name) == "" {
		h.respondWithError(w, http.StatusBadRequest, "Query parameter 'name' is required")
		return
	}
	h.respondWithJSON(w, http.StatusOK, h.mapper.MapLegacyProduct(name))
}

// SizesResponse lists the sizes of a catalog product.
type SizesResponse struct {
	Product string   `json:"product"`
	Type    string   `json:"type,omitempty"`
	Types   []string `json:"types,omitempty"`
	Sizes   []string `json:"sizes"`
}

func (h *HTTPHandler) ListProductSizes(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	typ := r.URL.Query().Get("type")
	if !h.mapper.IsProductInNewStructure(name, "") {
		h.respondWithError(w, http.StatusNotFound, "Product not found in catalog")
		return
	}
	resp := SizesResponse{Product: name, Type: typ, Sizes: h.mapper.AvailableSizes(name, typ)}
	if typ == "" {
		resp.Types = h.productTypes(name)
	}
	h.respondWithJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandler) productTypes(name string) []string {
	_, _, entry, ok := h.mapper.Catalog().FindProduct(name)
	if !ok || !entry.HasTypes() {
		return nil
	}
	types := make([]string, 0, len(entry.Types))
	for t := range entry.Types {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// PriceResponse is the catalog price of one size.
type PriceResponse struct {
	Product string  `json:"product"`
	Size    string  `json:"size"`
	Type    string  `json:"type,omitempty"`
	Price   float64 `json:"price"`
}

func (h *HTTPHandler) GetCatalogPrice(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	size := r.URL.Query().Get("size")
	typ := r.URL.Query().Get("type")
	if size == "" {
		h.respondWithError(w, http.StatusBadRequest, "Query parameter 'size' is required")
		return
	}
	price, ok := h.mapper.Price(name, size, typ)
	if !ok {
		h.respondWithError(w, http.StatusNotFound, "No catalog price for this product and size")
		return
	}
	h.respondWithJSON(w, http.StatusOK, PriceResponse{Product: name, Size: size, Type: typ, Price: price})
}

// NavigateInput moves a drill-down state one step. Action is "category" or "product"
// (with Value naming the selection) or "back".
type NavigateInput struct {
	State  domain.NavigationState `json:"state"`
	Action string                 `json:"action" validate:"required,oneof=category product back"`
	Value  string                 `json:"value" validate:"required_unless=Action back"`
}

// NavigateResponse is the new state and the choices offered at its layer.
type NavigateResponse struct {
	State   domain.NavigationState `json:"state"`
	Options []string               `json:"options"`
}

func (h *HTTPHandler) Navigate(w http.ResponseWriter, r *http.Request) {
	var input NavigateInput
	if !h.decodeJSON(w, r, &input) {
		return
	}
	if err := h.validate.Struct(input); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	state := input.State
	if state.CurrentLayer == "" {
		state = domain.NewNavigation()
	}
	if !state.Valid() {
		h.respondWithError(w, http.StatusBadRequest, "Invalid navigation state")
		return
	}

	switch input.Action {
	case "back":
		state = state.Back()
	case "category":
		if state.CurrentLayer != domain.LayerCategory {
			h.respondWithError(w, http.StatusConflict, "A category can only be selected from the category layer")
			return
		}
		if res := h.repairer.ValidateCategory(input.Value); !res.IsValid {
			h.respondWithError(w, http.StatusUnprocessableEntity, res.Error)
			return
		}
		state = state.SelectCategory(input.Value)
	case "product":
		if state.CurrentLayer != domain.LayerProduct {
			h.respondWithError(w, http.StatusConflict, "A product can only be selected from the product layer")
			return
		}
		if res := h.repairer.ValidateProduct(state.SelectedCategory, input.Value); !res.IsValid {
			h.respondWithError(w, http.StatusUnprocessableEntity, res.Error)
			return
		}
		state = state.SelectProduct(input.Value)
	}

	h.respondWithJSON(w, http.StatusOK, NavigateResponse{State: state, Options: h.navigationOptions(state)})
}

func (h *HTTPHandler) navigationOptions(state domain.NavigationState) []string {
	options := []string{}
	switch state.CurrentLayer {
	case domain.LayerCategory:
		for _, cat := range h.repairer.Categories() {
			options = append(options, cat.ID)
		}
	case domain.LayerProduct:
		for _, cat := range h.repairer.Categories() {
			if cat.ID == state.SelectedCategory || strings.EqualFold(cat.Name, state.SelectedCategory) {
				for name := range cat.Products {
					options = append(options, name)
				}
			}
		}
		sort.Strings(options)
	case domain.LayerSize:
		if types := h.productTypes(state.SelectedProduct); len(types) > 0 {
			return types
		}
		options = h.mapper.AvailableSizes(state.SelectedProduct, "")
	}
	return options
}
