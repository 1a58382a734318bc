package eventhub

import (
	"encoding/json"
	"fmt"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/sdkcore/eventhub/value"
)

// Reserved type/source pair emitted by the hub on shared-state publication
// (§6, §4.3 "Dispatch-on-set").
const (
	EventTypeHub           = "com.adobe.eventType.hub"
	EventSourceSharedState = "com.adobe.eventSource.sharedState"
)

// Event is the immutable record described in §3. Once constructed it never
// changes; the event number assigned at dispatch acceptance (Invariant E1,
// E2) lives in the hub's event-number map rather than on the Event itself,
// so that an Event remains a pure value shared by reference across
// extension containers (see §3 "Ownership").
type Event struct {
	id           string
	eventType    string
	source       string
	payload      map[string]value.Value
	responseID   string
	hasResponse  bool
	timestamp    time.Time
	hasTimestamp bool
	mask         []string
}

// EventOption customizes optional Event fields at construction time.
type EventOption func(*Event)

// WithResponseID marks the event as a response to triggerID, linking it to
// its trigger event for response-listener matching (§4.2.3).
func WithResponseID(triggerID string) EventOption {
	return func(e *Event) {
		e.responseID = triggerID
		e.hasResponse = true
	}
}

// WithTimestamp sets the event's optional timestamp.
func WithTimestamp(t time.Time) EventOption {
	return func(e *Event) {
		e.timestamp = t
		e.hasTimestamp = true
	}
}

// WithMask attaches an optional mask (§3), e.g. to flag the event for
// recording in a bounded history sink (§4.2.2 step 3).
func WithMask(mask []string) EventOption {
	return func(e *Event) { e.mask = mask }
}

// defaultIDGenerator backs the package-level NewEvent convenience
// constructor. A Hub with a custom IDGenerator uses Hub.NewEvent instead.
var defaultIDGenerator IDGenerator = NewUUIDGenerator()

// NewEvent constructs a new Event with a freshly generated id. eventType and
// source are compared case-insensitively by listener matching (§4.4).
func NewEvent(eventType, source string, payload map[string]value.Value, opts ...EventOption) *Event {
	return newEventWithGenerator(defaultIDGenerator, eventType, source, payload, opts...)
}

func newEventWithGenerator(gen IDGenerator, eventType, source string, payload map[string]value.Value, opts ...EventOption) *Event {
	e := &Event{
		id:        gen.NewID(),
		eventType: eventType,
		source:    source,
		payload:   payload,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Event) ID() string                    { return e.id }
func (e *Event) Type() string                  { return e.eventType }
func (e *Event) Source() string                { return e.source }
func (e *Event) Payload() map[string]value.Value { return e.payload }
func (e *Event) Mask() []string                { return e.mask }

// ResponseID returns the trigger event id this event responds to, if any.
func (e *Event) ResponseID() (string, bool) { return e.responseID, e.hasResponse }

// Timestamp returns the event's optional timestamp.
func (e *Event) Timestamp() (time.Time, bool) { return e.timestamp, e.hasTimestamp }

// NewResponse builds a response event with ResponseID set to this event's
// id, the idiomatic way extensions answer a request event (§3 "optional
// parent identifier (responseID)").
func (e *Event) NewResponse(eventType, source string, payload map[string]value.Value, opts ...EventOption) *Event {
	opts = append(opts, WithResponseID(e.id))
	return NewEvent(eventType, source, payload, opts...)
}

// ToCloudEvent renders the Event as a CloudEvents 1.0 Event, following the
// teacher's NewCloudEvent convention (observer_cloudevents.go): JSON data,
// SpecVersion v1, and lower-case-alphanumeric extension names only, as
// CloudEvents requires.
func (e *Event) ToCloudEvent() (cloudevents.Event, error) {
	ce := cloudevents.NewEvent()
	ce.SetID(e.id)
	ce.SetSource(e.source)
	ce.SetType(e.eventType)
	ce.SetSpecVersion(cloudevents.VersionV1)
	if e.hasTimestamp {
		ce.SetTime(e.timestamp)
	}
	if e.payload != nil {
		if err := ce.SetData(cloudevents.ApplicationJSON, value.MapToAny(e.payload)); err != nil {
			return cloudevents.Event{}, fmt.Errorf("encode event payload: %w", err)
		}
	}
	if e.hasResponse {
		ce.SetExtension("responseid", e.responseID)
	}
	if len(e.mask) > 0 {
		encoded, err := json.Marshal(e.mask)
		if err != nil {
			return cloudevents.Event{}, fmt.Errorf("encode event mask: %w", err)
		}
		ce.SetExtension("mask", string(encoded))
	}
	return ce, nil
}

// EventFromCloudEvent reconstructs an Event from a CloudEvents 1.0 Event,
// the inverse of ToCloudEvent. It is used at any transport boundary that
// hands the hub a wire-format event to dispatch.
func EventFromCloudEvent(ce cloudevents.Event) (*Event, error) {
	e := &Event{
		id:        ce.ID(),
		eventType: ce.Type(),
		source:    ce.Source(),
	}
	if !ce.Time().IsZero() {
		e.timestamp = ce.Time()
		e.hasTimestamp = true
	}
	if len(ce.Data()) > 0 {
		var raw map[string]interface{}
		if err := ce.DataAs(&raw); err != nil {
			return nil, fmt.Errorf("decode event payload: %w", err)
		}
		payload, err := value.MapFromAny(raw)
		if err != nil {
			return nil, fmt.Errorf("convert event payload: %w", err)
		}
		e.payload = payload
	}
	if ext, ok := ce.Extensions()["responseid"]; ok {
		if s, ok := ext.(string); ok {
			e.responseID = s
			e.hasResponse = true
		}
	}
	if ext, ok := ce.Extensions()["mask"]; ok {
		if s, ok := ext.(string); ok {
			var mask []string
			if err := json.Unmarshal([]byte(s), &mask); err != nil {
				return nil, fmt.Errorf("decode event mask: %w", err)
			}
			e.mask = mask
		}
	}
	return e, nil
}
