// AngelaMos | 2026
// entity.go

package event

import (
	"encoding/json"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/carterperez-dev/templates/events-api/internal/query"
	"github.com/carterperez-dev/templates/events-api/internal/store"
)

const (
	DefaultImage   = "no-image.jpg"
	AttendeesPath  = "attendees"
	CollectionName = "events"
)

type Event struct {
	store.Base `bson:",inline"`

	Title       string               `bson:"title"       json:"title"       validate:"required,max=50"`
	Description string               `bson:"description" json:"description" validate:"required,max=500"`
	Date        time.Time            `bson:"date"        json:"date"`
	Location    string               `bson:"location"    json:"location"    validate:"required"`
	Price       *float64             `bson:"price"       json:"price"       validate:"required,min=0,max=100000"`
	Attendees   []primitive.ObjectID `bson:"attendees"   json:"attendees"`
	Image       string               `bson:"image"       json:"image"`

	attendees []Attendee
}

// Attendee is the embedded view of a populated user reference.
type Attendee struct {
	ID    primitive.ObjectID `json:"_id"`
	Name  string             `json:"name"`
	Email string             `json:"email"`
	Photo string             `json:"photo"`
	Role  string             `json:"role"`
}

// Normalize trims text fields and fills the defaults of a new event.
func (e *Event) Normalize() {
	e.Title = strings.TrimSpace(e.Title)
	e.Description = strings.TrimSpace(e.Description)
	e.Location = strings.TrimSpace(e.Location)
	e.Image = strings.TrimSpace(e.Image)
	if e.Image == "" {
		e.Image = DefaultImage
	}
	if e.Date.IsZero() {
		e.Date = time.Now().UTC()
	}
	if e.Attendees == nil {
		e.Attendees = []primitive.ObjectID{}
	}
}

// Populated returns the expanded attendees, or nil when the reference was
// not populated.
func (e *Event) Populated() []Attendee {
	return e.attendees
}

func (e *Event) URL() string {
	return "/events/" + e.ID.Hex()
}

// MarshalJSON adds the url virtual and swaps attendee ids for their user
// summaries once populated.
func (e Event) MarshalJSON() ([]byte, error) {
	type plain Event

	var attendees any = e.Attendees
	switch {
	case e.attendees != nil:
		attendees = e.attendees
	case e.Attendees == nil:
		attendees = []primitive.ObjectID{}
	}

	return json.Marshal(struct {
		plain
		Attendees any    `json:"attendees"`
		URL       string `json:"url"`
	}{
		plain:     plain(e),
		Attendees: attendees,
		URL:       e.URL(),
	})
}

// Schema lists the event fields clients may filter, sort and select on.
var Schema = query.Schema{
	"_id":         query.ObjectID,
	"title":       query.String,
	"description": query.String,
	"date":        query.Date,
	"location":    query.String,
	"price":       query.Number,
	"attendees":   query.ObjectID,
	"image":       query.String,
	"createdAt":   query.Date,
	"updatedAt":   query.Date,
}
