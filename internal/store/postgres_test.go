package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pos-inventory-service/internal/domain"
)

var productColumnNames = []string{
	"id", "name", "unit_kind", "stock", "price",
	"suggested_price", "cost", "reference_quantity", "created_at", "updated_at",
}

// Helper function to create a mock DB and PostgresStore for testing
func newMockDBAndStore(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresStore) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err, "Failed to create sqlmock")

	store := NewPostgresStore(db, zerolog.Nop())
	require.NotNil(t, store)
	return db, mock, store
}

func PtrTo[T any](v T) *T {
	return &v
}

func tieredRow(id int64, stock int32, now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(productColumnNames).
		AddRow(id, "Ti", "g", stock, 30.0, "30/60/100", "12/22/35", "1/2/3.5", now, now)
}

func TestPostgresStore_CreateProduct(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now().Truncate(time.Millisecond)
	input := &domain.Product{
		Name:              "Ti",
		UnitKind:          domain.UnitGram,
		Stock:             40,
		Price:             30,
		SuggestedPrice:    PtrTo("30/60/100"),
		Cost:              PtrTo("12/22/35"),
		ReferenceQuantity: PtrTo("1/2/3.5"),
	}

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO pos.products (name, unit_kind, stock, price, suggested_price, cost, reference_quantity)`)).
		WithArgs("Ti", "g", int32(40), 30.0, "30/60/100", "12/22/35", "1/2/3.5").
		WillReturnRows(tieredRow(7, 40, now))

	created, err := store.CreateProduct(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, int64(7), created.ID)
	assert.Equal(t, domain.UnitGram, created.UnitKind)
	assert.Equal(t, PtrTo("1/2/3.5"), created.ReferenceQuantity)
	assert.WithinDuration(t, now, created.CreatedAt, time.Second)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateProduct_NameExists(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	pqErr := &pq.Error{Code: "23505", Constraint: "products_name_key"}
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO pos.products`)).WillReturnError(pqErr)

	_, err := store.CreateProduct(context.Background(), &domain.Product{Name: "Ti", UnitKind: domain.UnitGram})
	assert.ErrorIs(t, err, ErrProductNameExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetProductByID(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now().Truncate(time.Millisecond)
	query := regexp.QuoteMeta(`FROM pos.products WHERE id = $1`)

	mock.ExpectQuery(query).WithArgs(int64(7)).WillReturnRows(
		sqlmock.NewRows(productColumnNames).AddRow(7, "Vi", "unit", 3, 10.0, nil, nil, nil, now, now))
	p, err := store.GetProductByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Vi", p.Name)
	assert.Nil(t, p.SuggestedPrice)
	assert.Nil(t, p.Cost)

	mock.ExpectQuery(query).WithArgs(int64(8)).WillReturnError(sql.ErrNoRows)
	_, err = store.GetProductByID(context.Background(), 8)
	assert.ErrorIs(t, err, ErrProductNotFound)

	mock.ExpectQuery(query).WithArgs(int64(9)).WillReturnError(errors.New("connection reset"))
	_, err = store.GetProductByID(context.Background(), 9)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrProductNotFound)
	assert.Contains(t, err.Error(), "connection reset")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListProducts(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now().Truncate(time.Millisecond)
	params := ListProductsParams{
		Limit:       10,
		Offset:      0,
		SearchQuery: PtrTo("ti"),
		InStock:     PtrTo(true),
		SortBy:      "price",
		SortOrder:   "desc",
	}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM pos.products WHERE name ILIKE $1 AND stock > 0`)).
		WithArgs("%ti%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM pos.products WHERE name ILIKE $1 AND stock > 0 ORDER BY price DESC LIMIT $2 OFFSET $3`)).
		WithArgs("%ti%", 10, 0).
		WillReturnRows(tieredRow(1, 40, now))

	products, total, err := store.ListProducts(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, products, 1)
	assert.Equal(t, "Ti", products[0].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListProducts_FiltersByIDsAndUnit(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	params := ListProductsParams{
		Limit:      5,
		UnitKind:   PtrTo(domain.UnitMilliliter),
		ProductIDs: []int64{3, 4},
		SortBy:     "DROP TABLE",
	}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM pos.products WHERE unit_kind = $1 AND id IN ($2,$3)`)).
		WithArgs("ml", int64(3), int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	products, total, err := store.ListProducts(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.NotNil(t, products)
	assert.Empty(t, products)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListProducts_DefaultSort(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM pos.products`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY name ASC LIMIT $1 OFFSET $2`)).
		WithArgs(20, 20).
		WillReturnError(errors.New("timeout"))

	_, _, err := store.ListProducts(context.Background(), ListProductsParams{Limit: 20, Offset: 20, SortBy: "bogus"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to query products")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateProduct(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now().Truncate(time.Millisecond)
	product := &domain.Product{ID: 1, Name: "Ti", UnitKind: domain.UnitGram, Stock: 12, Price: 30,
		SuggestedPrice: PtrTo("30/60/100"), Cost: PtrTo("12/22/35"), ReferenceQuantity: PtrTo("1/2/3.5")}
	query := regexp.QuoteMeta(`UPDATE pos.products`)

	mock.ExpectQuery(query).
		WithArgs("Ti", "g", int32(12), 30.0, "30/60/100", "12/22/35", "1/2/3.5", int64(1)).
		WillReturnRows(tieredRow(1, 12, now))
	updated, err := store.UpdateProduct(context.Background(), product)
	require.NoError(t, err)
	assert.Equal(t, int32(12), updated.Stock)

	mock.ExpectQuery(query).WillReturnError(sql.ErrNoRows)
	_, err = store.UpdateProduct(context.Background(), product)
	assert.ErrorIs(t, err, ErrProductNotFound)

	mock.ExpectQuery(query).WillReturnError(&pq.Error{Code: "23505", Detail: "Key (name)=(Ti) already exists."})
	_, err = store.UpdateProduct(context.Background(), product)
	assert.ErrorIs(t, err, ErrProductNameExists)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteProduct(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	query := regexp.QuoteMeta(`DELETE FROM pos.products WHERE id = $1`)

	mock.ExpectExec(query).WithArgs(int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.DeleteProduct(context.Background(), 1))

	mock.ExpectExec(query).WithArgs(int64(2)).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, store.DeleteProduct(context.Background(), 2), ErrProductNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateStock(t *testing.T) {
	updateQuery := regexp.QuoteMeta(`SET stock = stock + $1, updated_at = CURRENT_TIMESTAMP`)
	existsQuery := regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM pos.products WHERE id = $1)`)

	t.Run("applied", func(t *testing.T) {
		db, mock, store := newMockDBAndStore(t)
		defer db.Close()

		mock.ExpectQuery(updateQuery).WithArgs(int32(-3), int64(1)).
			WillReturnRows(tieredRow(1, 37, time.Now()))

		p, err := store.UpdateStock(context.Background(), 1, -3)
		require.NoError(t, err)
		assert.Equal(t, int32(37), p.Stock)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient stock", func(t *testing.T) {
		db, mock, store := newMockDBAndStore(t)
		defer db.Close()

		mock.ExpectQuery(updateQuery).WithArgs(int32(-50), int64(1)).WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(existsQuery).WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		_, err := store.UpdateStock(context.Background(), 1, -50)
		assert.ErrorIs(t, err, ErrInsufficientStock)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing product", func(t *testing.T) {
		db, mock, store := newMockDBAndStore(t)
		defer db.Close()

		mock.ExpectQuery(updateQuery).WithArgs(int32(5), int64(99)).WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(existsQuery).WithArgs(int64(99)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		_, err := store.UpdateStock(context.Background(), 99, 5)
		assert.ErrorIs(t, err, ErrProductNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStore_Blobs(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()
	ctx := context.Background()

	getQuery := regexp.QuoteMeta(`SELECT value FROM pos.kv_store WHERE key = $1`)

	mock.ExpectQuery(getQuery).WithArgs("cart_items").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(`[{"productName":"Ti"}]`))
	value, err := store.GetBlob(ctx, "cart_items")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"productName":"Ti"}]`, string(value))

	mock.ExpectQuery(getQuery).WithArgs("orders").WillReturnError(sql.ErrNoRows)
	_, err = store.GetBlob(ctx, "orders")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO pos.kv_store (key, value)`)).
		WithArgs("orders", `[]`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.PutBlob(ctx, "orders", []byte(`[]`)))

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT key FROM pos.kv_store WHERE key LIKE $1 ORDER BY key`)).
		WithArgs("backup:%").
		WillReturnRows(sqlmock.NewRows([]string{"key"}).AddRow("backup:a:orders").AddRow("backup:b:orders"))
	keys, err := store.ListKeys(ctx, "backup:")
	require.NoError(t, err)
	assert.Equal(t, []string{"backup:a:orders", "backup:b:orders"}, keys)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ApplySchema(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`CREATE SCHEMA IF NOT EXISTS pos;`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, store.ApplySchema(context.Background()))

	mock.ExpectExec(regexp.QuoteMeta(`CREATE SCHEMA IF NOT EXISTS pos;`)).
		WillReturnError(errors.New("permission denied"))
	err := store.ApplySchema(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")

	require.NoError(t, mock.ExpectationsWereMet())
}
