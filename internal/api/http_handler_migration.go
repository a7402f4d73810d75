package api

import (
	"net/http"
	"strconv"

	"pos-inventory-service/internal/domain"
	"pos-inventory-service/internal/migration"
	"pos-inventory-service/internal/repair"
)

// --- Migration Handlers ---

func (h *HTTPHandler) MigrateCartItems(w http.ResponseWriter, r *http.Request) {
	var items []domain.CartItem
	if !h.decodeJSON(w, r, &items) {
		return
	}
	h.respondWithJSON(w, http.StatusOK, h.migrator.MigrateCartItems(items))
}

func (h *HTTPHandler) MigrateOrders(w http.ResponseWriter, r *http.Request) {
	var orders []domain.Order
	if !h.decodeJSON(w, r, &orders) {
		return
	}
	h.respondWithJSON(w, http.StatusOK, h.migrator.MigrateOrders(orders))
}

func (h *HTTPHandler) ValidateMigratedData(w http.ResponseWriter, r *http.Request) {
	var items []domain.CartItem
	if !h.decodeJSON(w, r, &items) {
		return
	}
	h.respondWithJSON(w, http.StatusOK, h.migrator.ValidateMigratedData(r.Context(), items))
}

// MigrationStatusResponse tells whether stored data still needs migrating.
type MigrationStatusResponse struct {
	Needed  bool               `json:"needed"`
	Backups []migration.Backup `json:"backups"`
}

func (h *HTTPHandler) MigrationStatus(w http.ResponseWriter, r *http.Request) {
	needed, err := h.migrator.IsMigrationNeeded(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("IsMigrationNeeded failed")
		h.respondWithError(w, http.StatusInternalServerError, "Failed to inspect stored data")
		return
	}
	backups, err := h.migrator.ListBackups(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("ListBackups failed")
		h.respondWithError(w, http.StatusInternalServerError, "Failed to list backups")
		return
	}
	h.respondWithJSON(w, http.StatusOK, MigrationStatusResponse{Needed: needed, Backups: backups})
}

// RunMigration migrates stored data. ?backup=false skips the snapshot.
func (h *HTTPHandler) RunMigration(w http.ResponseWriter, r *http.Request) {
	backup := true
	if v := r.URL.Query().Get("backup"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			h.respondWithError(w, http.StatusBadRequest, "Invalid backup value: must be true or false")
			return
		}
		backup = b
	}

	res, err := h.migrator.PerformAutoMigration(r.Context(), backup)
	if err != nil {
		h.logger.Error().Err(err).Msg("PerformAutoMigration failed")
		h.respondWithError(w, http.StatusInternalServerError, "Migration failed: "+repair.ErrorMessage(err))
		return
	}
	h.respondWithJSON(w, http.StatusOK, res)
}

func (h *HTTPHandler) CreateBackup(w http.ResponseWriter, r *http.Request) {
	backup, err := h.migrator.CreateDataBackup(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("CreateDataBackup failed")
		h.respondWithError(w, http.StatusInternalServerError, "Failed to create backup")
		return
	}
	h.respondWithJSON(w, http.StatusCreated, backup)
}

// --- Repair and Validation Handlers ---

func (h *HTTPHandler) RepairCartItem(w http.ResponseWriter, r *http.Request) {
	var item domain.CartItem
	if !h.decodeJSON(w, r, &item) {
		return
	}
	h.respondWithJSON(w, http.StatusOK, h.repairer.RepairCartItem(item))
}

func (h *HTTPHandler) RepairOrder(w http.ResponseWriter, r *http.Request) {
	var order domain.Order
	if !h.decodeJSON(w, r, &order) {
		return
	}
	h.respondWithJSON(w, http.StatusOK, h.repairer.RepairOrder(order))
}

func (h *HTTPHandler) ValidateCartItem(w http.ResponseWriter, r *http.Request) {
	var item domain.CartItem
	if !h.decodeJSON(w, r, &item) {
		return
	}
	h.respondWithJSON(w, http.StatusOK, h.repairer.ValidateCartItem(item))
}

// SizeCheckInput names a catalog size to check.
type SizeCheckInput struct {
	Category string `json:"category"`
	Product  string `json:"product"`
	Size     string `json:"size"`
	Type     string `json:"type"`
}

func (h *HTTPHandler) ValidateSize(w http.ResponseWriter, r *http.Request) {
	var input SizeCheckInput
	if !h.decodeJSON(w, r, &input) {
		return
	}
	h.respondWithJSON(w, http.StatusOK, h.repairer.ValidateSize(input.Category, input.Product, input.Size, input.Type))
}
