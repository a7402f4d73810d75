package domain

// Layer is a level of the category → product → size drill-down.
type Layer string

const (
	LayerCategory Layer = "category"
	LayerProduct  Layer = "product"
	LayerSize     Layer = "size"
)

// NavigationState is the drill-down stack used while picking an item.
// History holds prior states in push order; entries carry no history of their own.
type NavigationState struct {
	CurrentLayer     Layer             `json:"currentLayer"`
	SelectedCategory string            `json:"selectedCategory,omitempty"`
	SelectedProduct  string            `json:"selectedProduct,omitempty"`
	History          []NavigationState `json:"history"`
}

// NewNavigation starts at the category layer with an empty history.
func NewNavigation() NavigationState {
	return NavigationState{CurrentLayer: LayerCategory, History: []NavigationState{}}
}

// SelectCategory moves to the product layer of category.
func (s NavigationState) SelectCategory(category string) NavigationState {
	next := s.push()
	next.CurrentLayer = LayerProduct
	next.SelectedCategory = category
	next.SelectedProduct = ""
	return next
}

// SelectProduct moves to the size layer of product within the current category.
func (s NavigationState) SelectProduct(product string) NavigationState {
	next := s.push()
	next.CurrentLayer = LayerSize
	next.SelectedProduct = product
	return next
}

// Back restores the most recent history entry and drops it from the stack.
// At the root it returns s unchanged.
func (s NavigationState) Back() NavigationState {
	n := len(s.History)
	if n == 0 {
		return s
	}
	prev := s.History[n-1]
	prev.History = append([]NavigationState{}, s.History[:n-1]...)
	return prev
}

// Valid checks that the selection fields match the current layer.
func (s NavigationState) Valid() bool {
	switch s.CurrentLayer {
	case LayerCategory:
		return s.SelectedCategory == "" && s.SelectedProduct == ""
	case LayerProduct:
		return s.SelectedCategory != "" && s.SelectedProduct == ""
	case LayerSize:
		return s.SelectedCategory != "" && s.SelectedProduct != ""
	}
	return false
}

func (s NavigationState) push() NavigationState {
	snapshot := s
	snapshot.History = nil
	history := make([]NavigationState, 0, len(s.History)+1)
	history = append(history, s.History...)
	history = append(history, snapshot)
	s.History = history
	return s
}
