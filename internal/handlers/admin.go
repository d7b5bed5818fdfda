package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pontifexx/supplier-portal/internal/store"
)

func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.Store.ListCustomers()
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"customers": customers})
}

type customerRequest struct {
	Name   string `json:"name"`
	Domain string `json:"domain"`
	APIKey string `json:"api_key"`
}

// CreateCustomer registers a new tenant. The connection is verified before
// anything is stored so a typo in the domain or key fails fast.
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if err := decode(r, &req); err != nil || req.Name == "" || req.Domain == "" || req.APIKey == "" {
		h.writeError(w, http.StatusBadRequest, "name, domain, and api_key are required")
		return
	}

	if err := h.Client.TestConnection(r.Context(), req.Domain, req.APIKey); err != nil {
		h.writeError(w, http.StatusBadGateway, "connection test failed: "+err.Error())
		return
	}

	id, err := h.Store.CreateCustomer(req.Name, req.Domain, req.APIKey)
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	h.Logger.Info("customer created", "customer_id", id, "name", req.Name)
	h.writeJSON(w, http.StatusCreated, map[string]interface{}{"id": id})
}

// DeleteCustomer removes a tenant along with its mappings and cached jobs.
func (h *Handler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.customerID(w, r)
	if !ok {
		return
	}

	if err := h.Store.DeleteCustomer(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "customer not found")
			return
		}
		h.serverError(w, r, err)
		return
	}

	h.Logger.Info("customer deleted", "customer_id", id)
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type rotateKeyRequest struct {
	APIKey string `json:"api_key"`
}

// RotateCustomerKey replaces a tenant's API key after verifying it works.
func (h *Handler) RotateCustomerKey(w http.ResponseWriter, r *http.Request) {
	id, ok := h.customerID(w, r)
	if !ok {
		return
	}

	var req rotateKeyRequest
	if err := decode(r, &req); err != nil || req.APIKey == "" {
		h.writeError(w, http.StatusBadRequest, "api_key is required")
		return
	}

	customer, err := h.Store.Customer(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "customer not found")
			return
		}
		h.serverError(w, r, err)
		return
	}

	if err := h.Client.TestConnection(r.Context(), customer.Domain, req.APIKey); err != nil {
		h.writeError(w, http.StatusBadGateway, "connection test failed: "+err.Error())
		return
	}

	if err := h.Store.UpdateCustomerKey(id, req.APIKey); err != nil {
		h.serverError(w, r, err)
		return
	}

	h.Logger.Info("customer key rotated", "customer_id", id)
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *Handler) TestCustomerConnection(w http.ResponseWriter, r *http.Request) {
	id, ok := h.customerID(w, r)
	if !ok {
		return
	}

	customer, err := h.Store.Customer(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "customer not found")
			return
		}
		h.serverError(w, r, err)
		return
	}

	if err := h.Client.TestConnection(r.Context(), customer.Domain, customer.APIKey); err != nil {
		h.writeJSON(w, http.StatusOK, map[string]interface{}{"ok": false, "error": err.Error()})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

// CustomerStatuses proxies the tenant's progress status catalog, used when
// configuring mappings.
func (h *Handler) CustomerStatuses(w http.ResponseWriter, r *http.Request) {
	id, ok := h.customerID(w, r)
	if !ok {
		return
	}

	customer, err := h.Store.Customer(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "customer not found")
			return
		}
		h.serverError(w, r, err)
		return
	}

	statuses, err := h.Client.ProgressStatuses(r.Context(), customer.Domain, customer.APIKey)
	if err != nil {
		h.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"statuses": statuses})
}

func (h *Handler) ListMappings(w http.ResponseWriter, r *http.Request) {
	id, ok := h.customerID(w, r)
	if !ok {
		return
	}

	mappings, err := h.Store.ListStatusMappings(id)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"mappings": mappings})
}

type mappingRequest struct {
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
}

func (h *Handler) CreateMapping(w http.ResponseWriter, r *http.Request) {
	id, ok := h.customerID(w, r)
	if !ok {
		return
	}

	var req mappingRequest
	if err := decode(r, &req); err != nil || req.FromStatus == "" || req.ToStatus == "" {
		h.writeError(w, http.StatusBadRequest, "from_status and to_status are required")
		return
	}

	mappingID, err := h.Store.CreateStatusMapping(id, req.FromStatus, req.ToStatus)
	if errors.Is(err, store.ErrDuplicateMapping) {
		h.writeError(w, http.StatusConflict, "a mapping for this status already exists")
		return
	}
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]interface{}{"id": mappingID})
}

func (h *Handler) DeleteMapping(w http.ResponseWriter, r *http.Request) {
	id, ok := h.customerID(w, r)
	if !ok {
		return
	}

	mappingID, err := strconv.ParseInt(chi.URLParam(r, "mappingID"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid mapping id")
		return
	}

	if err := h.Store.DeleteStatusMapping(id, mappingID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "mapping not found")
			return
		}
		h.serverError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ListSuppliers serves the admin overview of contact emails with access,
// optionally filtered by ?customer_id=N.
func (h *Handler) ListSuppliers(w http.ResponseWriter, r *http.Request) {
	var customerID int64
	if raw := r.URL.Query().Get("customer_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid customer_id")
			return
		}
		customerID = id
	}

	suppliers, err := h.Store.SupplierAccessOverview(customerID)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"suppliers": suppliers})
}

func (h *Handler) customerID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid customer id")
		return 0, false
	}
	return id, true
}
