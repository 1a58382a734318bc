// Package echo provides a minimal sample Extension: it listens for any
// event on a configured source and republishes its own shared state with a
// running count of how many it has seen. It exists to exercise
// eventhub.ExtensionFactory end to end, the way the teacher framework's
// examples/ subpackages exercise Application wiring.
package echo

import (
	"fmt"
	"sync/atomic"

	"github.com/sdkcore/eventhub"
)

// Name is the echo extension's declared identity.
const Name = "com.example.echo"

// Extension counts events matching its configured source and republishes
// the count as its own shared state after each one.
type Extension struct {
	api    *eventhub.ExtensionAPI
	source string
	count  atomic.Int64
}

// NewFactory returns an eventhub.ExtensionFactory that builds an Extension
// listening on eventSource (use "*" for every source).
func NewFactory(eventSource string) eventhub.ExtensionFactory {
	return func(api *eventhub.ExtensionAPI) (eventhub.Extension, error) {
		return &Extension{api: api, source: eventSource}, nil
	}
}

func (e *Extension) Name() string         { return Name }
func (e *Extension) FriendlyName() string { return "Echo" }
func (e *Extension) Version() string      { return "1.0.0" }

// OnRegistered attaches the extension's listener. It runs on the
// container's own lane before the container reaches REGISTERED; the hub
// does not deliver events to the container until it has returned
// (eventhub's startup barrier, spec §4.4).
func (e *Extension) OnRegistered() error {
	return e.api.RegisterListener("*", e.source, e.onEvent)
}

func (e *Extension) OnUnregistered() {}

func (e *Extension) onEvent(event *eventhub.Event) {
	count := e.count.Add(1)
	e.api.SetSharedState(eventhub.StateTypeStandard, map[string]any{
		"count":     count,
		"lastEvent": event.ID(),
	}, event, nil)
}

// Count returns how many events this extension has observed so far.
func (e *Extension) Count() int64 { return e.count.Load() }

// String satisfies fmt.Stringer for diagnostics.
func (e *Extension) String() string {
	return fmt.Sprintf("echo extension (source=%s, count=%d)", e.source, e.count.Load())
}
