package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"pos-inventory-service/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

// Predefined errors for store operations
var (
	ErrProductNotFound   = errors.New("store: product not found")
	ErrProductNameExists = errors.New("store: product name already exists")
	ErrInsufficientStock = errors.New("store: insufficient stock or update constraint violation")
	ErrKeyNotFound       = errors.New("store: key not found")
)

const productColumns = `id, name, unit_kind, stock, price, suggested_price, cost, reference_quantity, created_at, updated_at`

// PostgresStore implements ProductStorer and BlobStorer using PostgreSQL.
type PostgresStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewPostgresStore creates a new PostgresStore instance.
func NewPostgresStore(db *sql.DB, logger zerolog.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger.With().Str("component", "store").Logger()}
}

// ApplySchema creates the pos schema and its tables when they do not exist.
func (s *PostgresStore) ApplySchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("store: ApplySchema failed: %w", err)
	}
	s.logger.Info().Msg("database schema applied")
	return nil
}

// Ping checks that the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row scanner) (*domain.Product, error) {
	var p domain.Product
	var unitKind string
	var suggested, cost, refQty sql.NullString
	err := row.Scan(
		&p.ID, &p.Name, &unitKind, &p.Stock, &p.Price,
		&suggested, &cost, &refQty,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.UnitKind = domain.UnitKind(unitKind)
	p.SuggestedPrice = nullableString(suggested)
	p.Cost = nullableString(cost)
	p.ReferenceQuantity = nullableString(refQty)
	return &p, nil
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func isNameConflict(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return strings.Contains(pqErr.Constraint, "products_name_key") || strings.Contains(pqErr.Detail, "Key (name)")
	}
	return false
}

// --- ProductStorer Implementation ---

func (s *PostgresStore) CreateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	query := `
		INSERT INTO pos.products (name, unit_kind, stock, price, suggested_price, cost, reference_quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + productColumns + `;`
	row := s.db.QueryRowContext(ctx, query,
		product.Name, string(product.UnitKind), product.Stock, product.Price,
		product.SuggestedPrice, product.Cost, product.ReferenceQuantity,
	)
	created, err := scanProduct(row)
	if err != nil {
		if isNameConflict(err) {
			return nil, ErrProductNameExists
		}
		return nil, fmt.Errorf("store: CreateProduct failed to scan row: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) GetProductByID(ctx context.Context, id int64) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM pos.products WHERE id = $1;`
	product, err := scanProduct(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("store: GetProductByID failed to scan row: %w", err)
	}
	return product, nil
}

func (s *PostgresStore) ListProducts(ctx context.Context, params ListProductsParams) ([]domain.Product, int, error) {
	var queryArgs []interface{}
	var whereClauses []string
	argID := 1

	if params.SearchQuery != nil && *params.SearchQuery != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("name ILIKE $%d", argID))
		queryArgs = append(queryArgs, "%"+*params.SearchQuery+"%")
		argID++
	}
	if params.UnitKind != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("unit_kind = $%d", argID))
		queryArgs = append(queryArgs, string(*params.UnitKind))
		argID++
	}
	if params.InStock != nil {
		if *params.InStock {
			whereClauses = append(whereClauses, "stock > 0")
		} else {
			whereClauses = append(whereClauses, "stock = 0")
		}
	}
	if len(params.ProductIDs) > 0 {
		placeholders := make([]string, len(params.ProductIDs))
		for i, pid := range params.ProductIDs {
			placeholders[i] = fmt.Sprintf("$%d", argID+i)
			queryArgs = append(queryArgs, pid)
		}
		whereClauses = append(whereClauses, fmt.Sprintf("id IN (%s)", strings.Join(placeholders, ",")))
		argID += len(params.ProductIDs)
	}

	whereCondition := ""
	if len(whereClauses) > 0 {
		whereCondition = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	countQuery := "SELECT COUNT(*) FROM pos.products" + whereCondition
	var totalCount int
	if err := s.db.QueryRowContext(ctx, countQuery, queryArgs...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("store: ListProducts failed to count products: %w", err)
	}
	if totalCount == 0 {
		return []domain.Product{}, 0, nil
	}

	sortColumn := "name"
	allowedSortColumns := map[string]string{
		"name":       "name",
		"price":      "price",
		"stock":      "stock",
		"created_at": "created_at",
	}
	if col, ok := allowedSortColumns[strings.ToLower(params.SortBy)]; ok {
		sortColumn = col
	}
	sortOrder := "ASC"
	if strings.ToUpper(params.SortOrder) == "DESC" {
		sortOrder = "DESC"
	}

	dataQuery := fmt.Sprintf("SELECT %s FROM pos.products%s ORDER BY %s %s LIMIT $%d OFFSET $%d",
		productColumns, whereCondition, sortColumn, sortOrder, argID, argID+1)
	finalQueryArgs := append(queryArgs, params.Limit, params.Offset)

	rows, err := s.db.QueryContext(ctx, dataQuery, finalQueryArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: ListProducts failed to query products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0, params.Limit)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("store: ListProducts failed to scan product row: %w", err)
		}
		products = append(products, *p)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("store: ListProducts iteration error: %w", err)
	}
	return products, totalCount, nil
}

func (s *PostgresStore) UpdateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	query := `
		UPDATE pos.products
		SET name = $1, unit_kind = $2, stock = $3, price = $4,
			suggested_price = $5, cost = $6, reference_quantity = $7, updated_at = CURRENT_TIMESTAMP
		WHERE id = $8
		RETURNING ` + productColumns + `;`
	updated, err := scanProduct(s.db.QueryRowContext(ctx, query,
		product.Name, string(product.UnitKind), product.Stock, product.Price,
		product.SuggestedPrice, product.Cost, product.ReferenceQuantity, product.ID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		if isNameConflict(err) {
			return nil, ErrProductNameExists
		}
		return nil, fmt.Errorf("store: UpdateProduct failed to scan row: %w", err)
	}
	return updated, nil
}

func (s *PostgresStore) DeleteProduct(ctx context.Context, id int64) error {
	query := `DELETE FROM pos.products WHERE id = $1;`
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("store: DeleteProduct failed to execute delete: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: DeleteProduct failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}

// UpdateStock applies quantityChange and refuses to let stock go below zero.
func (s *PostgresStore) UpdateStock(ctx context.Context, productID int64, quantityChange int32) (*domain.Product, error) {
	query := `
		UPDATE pos.products
		SET stock = stock + $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2 AND stock + $1 >= 0
		RETURNING ` + productColumns + `;`
	updated, err := scanProduct(s.db.QueryRowContext(ctx, query, quantityChange, productID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Either the product is missing or the stock guard failed.
			var exists bool
			checkQuery := `SELECT EXISTS(SELECT 1 FROM pos.products WHERE id = $1)`
			if err := s.db.QueryRowContext(ctx, checkQuery, productID).Scan(&exists); err != nil {
				return nil, fmt.Errorf("store: UpdateStock failed to check product existence: %w", err)
			}
			if !exists {
				return nil, ErrProductNotFound
			}
			return nil, ErrInsufficientStock
		}
		return nil, fmt.Errorf("store: UpdateStock failed to scan row: %w", err)
	}
	return updated, nil
}

// --- BlobStorer Implementation ---

func (s *PostgresStore) GetBlob(ctx context.Context, key string) ([]byte, error) {
	query := `SELECT value FROM pos.kv_store WHERE key = $1;`
	var value []byte
	if err := s.db.QueryRowContext(ctx, query, key).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("store: GetBlob %q failed: %w", key, err)
	}
	return value, nil
}

func (s *PostgresStore) PutBlob(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO pos.kv_store (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = CURRENT_TIMESTAMP;`
	// jsonb columns need text parameters; lib/pq would send []byte as bytea.
	if _, err := s.db.ExecContext(ctx, query, key, string(value)); err != nil {
		return fmt.Errorf("store: PutBlob %q failed: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	query := `SELECT key FROM pos.kv_store WHERE key LIKE $1 ORDER BY key;`
	rows, err := s.db.QueryContext(ctx, query, prefix+"%")
	if err != nil {
		return nil, fmt.Errorf("store: ListKeys failed to query keys: %w", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("store: ListKeys failed to scan key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: ListKeys iteration error: %w", err)
	}
	return keys, nil
}

func (s *PostgresStore) Close() error {
	if s.db == nil {
		return nil
	}
	s.logger.Info().Msg("closing database connection pool")
	if err := s.db.Close(); err != nil {
		s.logger.Error().Err(err).Msg("failed to close database connection pool")
		return err
	}
	return nil
}
