package store

import (
	"context"

	"pos-inventory-service/internal/domain"
)

// ListProductsParams holds parameters for listing products (pagination, filtering, sorting).
type ListProductsParams struct {
	Limit       int
	Offset      int
	SearchQuery *string // Matches product name
	UnitKind    *domain.UnitKind
	InStock     *bool
	SortBy      string // "name", "price", "stock", "created_at"
	SortOrder   string // "asc" or "desc"
	ProductIDs  []int64
}

// ProductStorer defines the database operations for inventory products.
type ProductStorer interface {
	CreateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error)
	GetProductByID(ctx context.Context, id int64) (*domain.Product, error)
	ListProducts(ctx context.Context, params ListProductsParams) ([]domain.Product, int, error) // Returns products and total count
	UpdateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	UpdateStock(ctx context.Context, productID int64, quantityChange int32) (*domain.Product, error)
}

// BlobStorer is the key/value store holding serialized cart, order and backup records.
// Values are JSON documents.
type BlobStorer interface {
	GetBlob(ctx context.Context, key string) ([]byte, error)
	PutBlob(ctx context.Context, key string, value []byte) error
	ListKeys(ctx context.Context, prefix string) ([]string, error)
}
