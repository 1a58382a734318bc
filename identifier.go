package eventhub

import "github.com/google/uuid"

// IDGenerator produces globally-unique strings for event ids and for the
// hub-internal ids of response-listener registrations.
type IDGenerator interface {
	NewID() string
}

// uuidGenerator generates UUIDv7 identifiers, which embed a timestamp and
// so sort roughly in creation order; this mirrors the teacher's
// generateEventID (observer_cloudevents.go), including its v4 fallback.
type uuidGenerator struct{}

// NewUUIDGenerator returns the default IDGenerator, used by NewHub when no
// IDGenerator is supplied.
func NewUUIDGenerator() IDGenerator { return uuidGenerator{} }

func (uuidGenerator) NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}
