// Package migration upgrades legacy cart and order records to the category → product →
// size hierarchy and manages the stored copies of those records.
package migration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cast"

	"pos-inventory-service/internal/domain"
	"pos-inventory-service/internal/legacy"
	"pos-inventory-service/internal/pricing"
	"pos-inventory-service/internal/store"
)

// Keys of the records the terminal persists in the blob store.
const (
	KeyCartItems  = "cart_items"
	KeyOrderItems = "order_items"
	KeyOrders     = "orders"

	// KeyBackups holds the list of backup manifests.
	KeyBackups = "backups"
)

var dataKeys = []string{KeyCartItems, KeyOrderItems, KeyOrders}

// ProductLookup finds inventory products by id.
type ProductLookup interface {
	GetProductByID(ctx context.Context, id int64) (*domain.Product, error)
}

// Report is the outcome of ValidateMigratedData.
type Report struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors"`
}

// Backup describes one snapshot taken by CreateDataBackup.
type Backup struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Keys      []string  `json:"keys"`
	// Missing lists manifest keys whose copy is no longer in the store.
	Missing   []string  `json:"missing,omitempty"`
}

// Result summarises a PerformAutoMigration run.
type Result struct {
	Skipped    bool    `json:"skipped"`
	BackupID   string  `json:"backupId,omitempty"`
	CartItems  int     `json:"cartItems"`
	OrderItems int     `json:"orderItems"`
	Orders     int     `json:"orders"`
	Validation *Report `json:"validation,omitempty"`
}

// Service migrates records. The item-level methods are pure; the storage helpers read
// and write the blob store.
type Service struct {
	mapper   *legacy.Mapper
	resolver *pricing.Resolver
	products ProductLookup
	blobs    store.BlobStorer
	logger   zerolog.Logger
	now      func() time.Time

	mu sync.Mutex // serialises PerformAutoMigration
}

// NewService creates a migration Service. products and blobs may be nil when only the
// item-level operations are used.
func NewService(mapper *legacy.Mapper, resolver *pricing.Resolver, products ProductLookup, blobs store.BlobStorer, logger zerolog.Logger) *Service {
	return &Service{
		mapper:   mapper,
		resolver: resolver,
		products: products,
		blobs:    blobs,
		logger:   logger.With().Str("component", "migration").Logger(),
		now:      time.Now,
	}
}

// MigrateCartItem returns item with hierarchy fields and display name filled in.
// The product type is always re-derived from ProductName, so running it twice gives the
// same result. ProductID, Price and Quantity are never touched.
func (s *Service) MigrateCartItem(item domain.CartItem) domain.CartItem {
	m := s.mapper.MapLegacyProduct(item.ProductName)

	out := item
	if out.CategoryName == "" {
		out.CategoryName = m.Category
	}
	out.ProductTypeName = m.ProductType
	if m.Type != "" {
		out.Type = m.Type
	}
	out.DisplayName = DisplayName(out)
	return out
}

// DisplayName renders "{productName} > {type} - {size}{unit}", dropping the type part
// when there is none. Items in the Legacy category get a "Legacy > " prefix.
func DisplayName(item domain.CartItem) string {
	var b strings.Builder
	name := strings.TrimSpace(item.ProductName)
	if item.CategoryName == legacy.LegacyCategory {
		b.WriteString(legacy.LegacyCategory)
		if name != "" {
			b.WriteString(" > ")
		}
	}
	b.WriteString(name)
	if item.Type != "" {
		b.WriteString(" > ")
		b.WriteString(item.Type)
	}
	b.WriteString(" - ")
	b.WriteString(item.Size.String())
	b.WriteString(item.Unit)
	return b.String()
}

// MigrateCartItems migrates every item. The input slice is not modified.
func (s *Service) MigrateCartItems(items []domain.CartItem) []domain.CartItem {
	out := make([]domain.CartItem, len(items))
	for i, item := range items {
		out[i] = s.MigrateCartItem(item)
	}
	return out
}

// MigrateOrderItem migrates one order line.
func (s *Service) MigrateOrderItem(item domain.OrderItem) domain.OrderItem {
	return s.MigrateCartItem(item)
}

// MigrateOrder migrates the lines of order and leaves every other field as it was.
func (s *Service) MigrateOrder(order domain.Order) domain.Order {
	out := order
	if order.Items != nil {
		out.Items = s.MigrateCartItems(order.Items)
	}
	return out
}

// MigrateOrders migrates a batch of orders.
func (s *Service) MigrateOrders(orders []domain.Order) []domain.Order {
	out := make([]domain.Order, len(orders))
	for i, o := range orders {
		out[i] = s.MigrateOrder(o)
	}
	return out
}

// ValidateMigratedData checks that items carry hierarchy fields and that stored prices
// agree with the inventory's pricing tables. Items whose product cannot be found are
// not price-checked.
func (s *Service) ValidateMigratedData(ctx context.Context, items []domain.CartItem) Report {
	errs := []string{}
	for i, item := range items {
		if item.CategoryName == "" {
			errs = append(errs, fmt.Sprintf("Item %d: Missing category name", i))
		}
		if item.ProductTypeName == "" {
			errs = append(errs, fmt.Sprintf("Item %d: Missing product type", i))
		}
		if expected, ok := s.expectedPrice(ctx, item); ok && pricing.Differs(item.Price, expected) {
			errs = append(errs, fmt.Sprintf("Item %d: Price mismatch (stored %.2f, expected %.2f)", i, item.Price, expected))
		}
	}
	return Report{IsValid: len(errs) == 0, Errors: errs}
}

// expectedPrice resolves the price of the item's size. Labels without a number ("unit")
// count as one unit.
func (s *Service) expectedPrice(ctx context.Context, item domain.CartItem) (float64, bool) {
	if s.products == nil || s.resolver == nil || item.ProductID == "" {
		return 0, false
	}
	id, err := cast.ToInt64E(item.ProductID.String())
	if err != nil {
		return 0, false
	}
	product, err := s.products.GetProductByID(ctx, id)
	if err != nil {
		if !errors.Is(err, store.ErrProductNotFound) {
			s.logger.Warn().Err(err).Int64("product_id", id).Msg("price check skipped")
		}
		return 0, false
	}

	qty, ok := pricing.ParseQuantity(item.Size.String())
	if !ok || qty <= 0 {
		qty = 1
	}
	expected := s.resolver.Price(*product, qty)
	if expected == 0 {
		return 0, false
	}
	return expected, true
}

// IsMigrationNeeded reports whether any stored cart item, order item or order line still
// lacks hierarchy fields.
func (s *Service) IsMigrationNeeded(ctx context.Context) (bool, error) {
	for _, key := range []string{KeyCartItems, KeyOrderItems} {
		items, _, err := s.loadItems(ctx, key)
		if err != nil {
			return false, err
		}
		if hasLegacy(items) {
			return true, nil
		}
	}
	orders, _, err := s.loadOrders(ctx)
	if err != nil {
		return false, err
	}
	for _, o := range orders {
		if hasLegacy(o.Items) {
			return true, nil
		}
	}
	return false, nil
}

func hasLegacy(items []domain.CartItem) bool {
	for _, item := range items {
		if !item.IsMigrated() {
			return true
		}
	}
	return false
}

// BackupKey is where CreateDataBackup stores the copy of key for backup id.
func BackupKey(id, key string) string {
	return "backup:" + id + ":" + key
}

// CreateDataBackup copies every stored record key to a backup key and appends the
// backup to the manifest list. Missing keys are skipped.
func (s *Service) CreateDataBackup(ctx context.Context) (Backup, error) {
	if s.blobs == nil {
		return Backup{}, errors.New("migration: no blob store configured")
	}
	backup := Backup{ID: uuid.NewString(), CreatedAt: s.now().UTC(), Keys: []string{}}
	for _, key := range dataKeys {
		data, err := s.blobs.GetBlob(ctx, key)
		if errors.Is(err, store.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return Backup{}, fmt.Errorf("migration: backup read %s: %w", key, err)
		}
		if err := s.blobs.PutBlob(ctx, BackupKey(backup.ID, key), data); err != nil {
			return Backup{}, fmt.Errorf("migration: backup write %s: %w", key, err)
		}
		backup.Keys = append(backup.Keys, key)
	}

	backups, err := s.loadManifests(ctx)
	if err != nil {
		return Backup{}, err
	}
	if err := s.putJSON(ctx, KeyBackups, append(backups, backup)); err != nil {
		return Backup{}, err
	}

	s.logger.Info().Str("backup_id", backup.ID).Strs("keys", backup.Keys).Msg("data backup created")
	return backup, nil
}

// ListBackups returns the recorded backup manifests, oldest first, with Missing set from
// the backup keys actually present in the store.
func (s *Service) ListBackups(ctx context.Context) ([]Backup, error) {
	backups, err := s.loadManifests(ctx)
	if err != nil {
		return nil, err
	}
	for i := range backups {
		prefix := BackupKey(backups[i].ID, "")
		stored, err := s.blobs.ListKeys(ctx, prefix)
		if err != nil {
			return nil, fmt.Errorf("migration: list backup %s: %w", backups[i].ID, err)
		}
		present := make(map[string]bool, len(stored))
		for _, k := range stored {
			present[strings.TrimPrefix(k, prefix)] = true
		}
		for _, k := range backups[i].Keys {
			if !present[k] {
				backups[i].Missing = append(backups[i].Missing, k)
			}
		}
	}
	return backups, nil
}

func (s *Service) loadManifests(ctx context.Context) ([]Backup, error) {
	backups := []Backup{}
	if _, err := s.getJSON(ctx, KeyBackups, &backups); err != nil {
		return nil, err
	}
	return backups, nil
}

// PerformAutoMigration migrates the stored cart items, order items and orders in place.
// When backup is set a snapshot is taken first. Nothing is written when no record needs
// migrating.
func (s *Service) PerformAutoMigration(ctx context.Context, backup bool) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.blobs == nil {
		return Result{}, errors.New("migration: no blob store configured")
	}

	needed, err := s.IsMigrationNeeded(ctx)
	if err != nil {
		return Result{}, err
	}
	if !needed {
		s.logger.Debug().Msg("stored data already migrated")
		return Result{Skipped: true}, nil
	}

	var res Result
	if backup {
		b, err := s.CreateDataBackup(ctx)
		if err != nil {
			return Result{}, err
		}
		res.BackupID = b.ID
	}

	var checked []domain.CartItem
	for _, key := range []string{KeyCartItems, KeyOrderItems} {
		items, found, err := s.loadItems(ctx, key)
		if err != nil {
			return res, err
		}
		if !found {
			continue
		}
		n := countLegacy(items)
		migrated := s.MigrateCartItems(items)
		if err := s.putJSON(ctx, key, migrated); err != nil {
			return res, err
		}
		checked = append(checked, migrated...)
		if key == KeyCartItems {
			res.CartItems = n
		} else {
			res.OrderItems = n
		}
	}

	orders, found, err := s.loadOrders(ctx)
	if err != nil {
		return res, err
	}
	if found {
		for _, o := range orders {
			if hasLegacy(o.Items) {
				res.Orders++
			}
		}
		migrated := s.MigrateOrders(orders)
		if err := s.putJSON(ctx, KeyOrders, migrated); err != nil {
			return res, err
		}
		for _, o := range migrated {
			checked = append(checked, o.Items...)
		}
	}

	report := s.ValidateMigratedData(ctx, checked)
	res.Validation = &report
	if !report.IsValid {
		s.logger.Warn().Strs("errors", report.Errors).Msg("migrated data has validation errors")
	}
	s.logger.Info().
		Int("cart_items", res.CartItems).
		Int("order_items", res.OrderItems).
		Int("orders", res.Orders).
		Str("backup_id", res.BackupID).
		Msg("auto migration finished")
	return res, nil
}

func countLegacy(items []domain.CartItem) int {
	n := 0
	for _, item := range items {
		if !item.IsMigrated() {
			n++
		}
	}
	return n
}

func (s *Service) loadItems(ctx context.Context, key string) ([]domain.CartItem, bool, error) {
	var items []domain.CartItem
	found, err := s.getJSON(ctx, key, &items)
	return items, found, err
}

func (s *Service) loadOrders(ctx context.Context) ([]domain.Order, bool, error) {
	var orders []domain.Order
	found, err := s.getJSON(ctx, KeyOrders, &orders)
	return orders, found, err
}

func (s *Service) getJSON(ctx context.Context, key string, v interface{}) (bool, error) {
	if s.blobs == nil {
		return false, nil
	}
	data, err := s.blobs.GetBlob(ctx, key)
	if errors.Is(err, store.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("migration: read %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("migration: decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Service) putJSON(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("migration: encode %s: %w", key, err)
	}
	if err := s.blobs.PutBlob(ctx, key, data); err != nil {
		return fmt.Errorf("migration: write %s: %w", key, err)
	}
	return nil
}
