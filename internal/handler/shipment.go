package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/vasiliy-maslov/nexoshop/internal/fulfillment"
)

type UpdateShipmentStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending processing shipped in_transit delivered returned"`
}

type UpdateTrackingRequest struct {
	TrackingNumber string `json:"tracking_number" validate:"required,max=64"`
	Carrier        string `json:"carrier" validate:"required,max=64"`
}

type ShipmentHandler struct {
	service  fulfillment.Service
	validate *validator.Validate
}

func NewShipmentHandler(service fulfillment.Service) *ShipmentHandler {
	return &ShipmentHandler{service: service, validate: validator.New()}
}

func (h *ShipmentHandler) RegisterAdminRoutes(router chi.Router) {
	router.Get("/shipments", h.handleListShipments)
	router.Patch("/shipments/{id}/status", h.handleUpdateStatus)
	router.Patch("/shipments/{id}/tracking", h.handleUpdateTracking)
}

func (h *ShipmentHandler) handleListShipments(w http.ResponseWriter, r *http.Request) {
	status := fulfillment.ShipmentStatus(r.URL.Query().Get("status"))

	shipments, err := h.service.ListShipments(r.Context(), status)
	if err != nil {
		respondWithServiceError(w, err, "Failed to list shipments")
		return
	}
	respondWithJSON(w, http.StatusOK, shipments)
}

func (h *ShipmentHandler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	var payload UpdateShipmentStatusRequest
	if !decodeAndValidate(w, r, h.validate, &payload) {
		return
	}

	shipment, err := h.service.UpdateShipmentStatus(r.Context(), id, fulfillment.ShipmentStatus(payload.Status))
	if err != nil {
		respondWithServiceError(w, err, "Failed to update shipment status")
		return
	}
	respondWithJSON(w, http.StatusOK, shipment)
}

func (h *ShipmentHandler) handleUpdateTracking(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	var payload UpdateTrackingRequest
	if !decodeAndValidate(w, r, h.validate, &payload) {
		return
	}

	shipment, err := h.service.UpdateTracking(r.Context(), id, payload.TrackingNumber, payload.Carrier)
	if err != nil {
		respondWithServiceError(w, err, "Failed to update shipment tracking")
		return
	}
	respondWithJSON(w, http.StatusOK, shipment)
}
