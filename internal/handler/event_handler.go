package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/agenda-api/internal/dto"
	"github.com/noah-isme/agenda-api/internal/geocode"
	"github.com/noah-isme/agenda-api/internal/middleware"
	"github.com/noah-isme/agenda-api/internal/models"
	"github.com/noah-isme/agenda-api/internal/service"
	appErrors "github.com/noah-isme/agenda-api/pkg/errors"
	"github.com/noah-isme/agenda-api/pkg/export"
	"github.com/noah-isme/agenda-api/pkg/response"
)

type eventService interface {
	List(ctx context.Context) ([]models.Event, bool, error)
	Get(ctx context.Context, id string) (*models.Event, error)
	Create(ctx context.Context, req dto.CreateEventRequest) (*models.Event, error)
	Delete(ctx context.Context, id string) error
	Select(id string) error
	ClearSelection()
	Selected() (*models.Event, bool)
	DeleteSelected(ctx context.Context) error
}

type geocoder interface {
	Resolve(ctx context.Context, address string) (*models.Coordinates, error)
}

// EventHandler exposes the agenda endpoints.
type EventHandler struct {
	service  eventService
	geocoder geocoder
	metrics  *service.MetricsService
}

// NewEventHandler builds a new handler. Geocoder and metrics may be nil.
func NewEventHandler(svc eventService, geo geocoder, metrics *service.MetricsService) *EventHandler {
	return &EventHandler{service: svc, geocoder: geo, metrics: metrics}
}

// List godoc
// @Summary List events sorted ascending by date
// @Tags Events
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /events [get]
func (h *EventHandler) List(c *gin.Context) {
	events, cacheHit, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordCacheLookup(cacheHit)
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, events, middleware.ExtractMeta(c))
}

// Create godoc
// @Summary Create an event and schedule its reminder
// @Tags Events
// @Accept json
// @Produce json
// @Param payload body dto.CreateEventRequest true "Event draft"
// @Success 201 {object} response.Envelope
// @Router /events [post]
func (h *EventHandler) Create(c *gin.Context) {
	var req dto.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return
	}
	event, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, event)
}

// Get godoc
// @Summary Get one event
// @Tags Events
// @Produce json
// @Param id path string true "Event id"
// @Success 200 {object} response.Envelope
// @Router /events/{id} [get]
func (h *EventHandler) Get(c *gin.Context) {
	event, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event)
}

// Delete godoc
// @Summary Delete one event by id
// @Tags Events
// @Param id path string true "Event id"
// @Success 204
// @Router /events/{id} [delete]
func (h *EventHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Select godoc
// @Summary Focus an event for the detail/delete flow
// @Tags Selection
// @Param id path string true "Event id"
// @Success 204
// @Router /events/{id}/select [post]
func (h *EventHandler) Select(c *gin.Context) {
	if err := h.service.Select(c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Selection godoc
// @Summary Get the currently selected event
// @Tags Selection
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /selection [get]
func (h *EventHandler) Selection(c *gin.Context) {
	event, ok := h.service.Selected()
	if !ok {
		response.Error(c, appErrors.ErrNoSelection)
		return
	}
	response.JSON(c, http.StatusOK, event)
}

// ClearSelection godoc
// @Summary Dismiss the current selection
// @Tags Selection
// @Success 204
// @Router /selection [delete]
func (h *EventHandler) ClearSelection(c *gin.Context) {
	h.service.ClearSelection()
	response.NoContent(c)
}

// DeleteSelected godoc
// @Summary Delete the currently selected event
// @Tags Selection
// @Success 204
// @Router /selection/delete [post]
func (h *EventHandler) DeleteSelected(c *gin.Context) {
	if err := h.service.DeleteSelected(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Map godoc
// @Summary Resolve the event place to coordinates and a maps launch URL
// @Tags Events
// @Produce json
// @Param id path string true "Event id"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/map [get]
func (h *EventHandler) Map(c *gin.Context) {
	if h.geocoder == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "geocoder not configured"))
		return
	}
	event, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	coords, err := h.geocoder.Resolve(c.Request.Context(), event.Place)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.EventMapResponse{
		Latitude:  coords.Latitude,
		Longitude: coords.Longitude,
		URL:       geocode.MapsURL(*coords),
	})
}

// Export godoc
// @Summary Export the agenda as CSV or PDF
// @Tags Events
// @Produce octet-stream
// @Param format query string false "csv or pdf" default(csv)
// @Success 200
// @Router /export [get]
func (h *EventHandler) Export(c *gin.Context) {
	events, _, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	dataset := export.Dataset{
		Headers: []string{"Data", "Hora", "Local", "Descrição"},
		Rows:    make([]map[string]string, 0, len(events)),
	}
	for _, event := range events {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Data":      event.Date,
			"Hora":      event.Time,
			"Local":     event.Place,
			"Descrição": event.Description,
		})
	}

	filename := fmt.Sprintf("agenda-%s", time.Now().Format("2006-01-02"))
	switch c.DefaultQuery("format", "csv") {
	case "pdf":
		payload, err := export.NewPDFExporter().Render(dataset, "Agenda de Eventos")
		if err != nil {
			response.Error(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.pdf"`, filename))
		c.Data(http.StatusOK, "application/pdf", payload)
	case "csv":
		payload, err := export.NewCSVExporter().Render(dataset)
		if err != nil {
			response.Error(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.csv"`, filename))
		c.Data(http.StatusOK, "text/csv", payload)
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf"))
	}
}
