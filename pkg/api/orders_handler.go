package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"logitrack/pkg/logger"
	"logitrack/pkg/models"
	"logitrack/service"
)

type OrdersHandler struct {
	Svc service.IServiceManager
	Log logger.ILogger
}

type locationsResp struct {
	DriverLocation   *models.Location `json:"driverLocation"`
	CustomerLocation *models.Location `json:"customerLocation"`
}

type startDeliveryReq struct {
	From *models.Location `json:"from,omitempty"`
}

type deliveryResp struct {
	OrderID  string                `json:"orderId"`
	State    service.DeliveryState `json:"state"`
	Position models.Location       `json:"position"`
	Ticks    int                   `json:"ticks"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.listOrders)
		r.Post("/", h.createOrder)
		r.Get("/code/{code}", h.findByCode)
		r.Put("/code/{code}/location/{role}", h.setLocation)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getOrder)
			r.Patch("/", h.updateOrder)
			r.Delete("/", h.deleteOrder)
			r.Get("/locations", h.getLocations)
			r.Post("/delivery", h.startDelivery)
			r.Get("/delivery", h.getDelivery)
			r.Delete("/delivery", h.cancelDelivery)
			r.Post("/complete", h.completeDelivery)
		})
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *OrdersHandler) writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrValidation):
		code = http.StatusBadRequest
	case errors.Is(err, models.ErrDuplicateCode), errors.Is(err, models.ErrAlreadyRunning):
		code = http.StatusConflict
	case errors.Is(err, models.ErrNotFound):
		code = http.StatusNotFound
	default:
		h.Log.Error("request failed", logger.Error(err))
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	var (
		orders []models.Order
		err    error
	)
	if status := r.URL.Query().Get("status"); status != "" {
		orders, err = h.Svc.Order().ListByStatus(r.Context(), models.OrderStatus(status))
	} else {
		orders, err = h.Svc.Order().List(r.Context(), r.URL.Query().Get("q"))
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req models.OrderFields
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	o, err := h.Svc.Order().Create(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Svc.Order().Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) updateOrder(w http.ResponseWriter, r *http.Request) {
	var req models.OrderFields
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	o, err := h.Svc.Order().Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.Svc.Delivery().Cancel(id)
	if err := h.Svc.Order().Delete(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *OrdersHandler) findByCode(w http.ResponseWriter, r *http.Request) {
	o, err := h.Svc.Order().FindByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) setLocation(w http.ResponseWriter, r *http.Request) {
	var loc models.Location
	if err := json.NewDecoder(r.Body).Decode(&loc); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	updated, err := h.Svc.Location().SetLocation(r.Context(), chi.URLParam(r, "code"), models.Role(chi.URLParam(r, "role")), loc)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"updated": updated})
}

func (h *OrdersHandler) getLocations(w http.ResponseWriter, r *http.Request) {
	driver, customer, err := h.Svc.Location().GetLocations(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, locationsResp{DriverLocation: driver, CustomerLocation: customer})
}

func (h *OrdersHandler) startDelivery(w http.ResponseWriter, r *http.Request) {
	var req startDeliveryReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	d, err := h.Svc.Delivery().Start(r.Context(), chi.URLParam(r, "id"), req.From)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, toDeliveryResp(d))
}

func (h *OrdersHandler) getDelivery(w http.ResponseWriter, r *http.Request) {
	d, ok := h.Svc.Delivery().Get(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no delivery for order"})
		return
	}
	writeJSON(w, http.StatusOK, toDeliveryResp(d))
}

func (h *OrdersHandler) cancelDelivery(w http.ResponseWriter, r *http.Request) {
	cancelled := h.Svc.Delivery().Cancel(chi.URLParam(r, "id"))
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": cancelled})
}

func (h *OrdersHandler) completeDelivery(w http.ResponseWriter, r *http.Request) {
	o, err := h.Svc.Delivery().Complete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func toDeliveryResp(d *service.Delivery) deliveryResp {
	return deliveryResp{
		OrderID:  d.OrderID,
		State:    d.State(),
		Position: d.Position(),
		Ticks:    d.Ticks(),
	}
}
