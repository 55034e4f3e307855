package dto

// CreateEventRequest is the draft form for a new agenda event. Hora and
// Minuto mirror the closed hour/minute selectors and default to "00" when
// the user never touches them, so midnight is a deliberate possibility.
type CreateEventRequest struct {
	Descricao string `json:"descricao" validate:"required"`
	Local     string `json:"local" validate:"required"`
	Data      string `json:"data" validate:"required"`
	Hora      string `json:"hora"`
	Minuto    string `json:"minuto"`
}

// EventMapResponse carries the resolved coordinates and launch URL for an
// event place.
type EventMapResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	URL       string  `json:"url"`
}
