package models

// Event represents a user-created agenda entry persisted in the events
// collection. Field names follow the stored document layout.
type Event struct {
	ID          string `db:"id" json:"id"`
	Description string `db:"descricao" json:"descricao"`
	Place       string `db:"local" json:"local"`
	Date        string `db:"data" json:"data"`
	Time        string `db:"hora" json:"hora"`
}

// Coordinates is a resolved geographic position for an event place.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
