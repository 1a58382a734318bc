package eventhub

import (
	"github.com/sdkcore/eventhub/dispatch"
	"github.com/sdkcore/eventhub/state"
	"github.com/sdkcore/eventhub/value"
)

// hubPlaceholderExtension is the built-in extension (§4.5) that hosts
// registerListener callbacks not bound to any specific extension, and owns
// the shared-state store the hub publishes its own snapshot under. It has
// nothing to do on registration or shutdown.
type hubPlaceholderExtension struct {
	version string
}

func (hubPlaceholderExtension) Name() string           { return hubPlaceholderName }
func (hubPlaceholderExtension) FriendlyName() string    { return "EventHub" }
func (e hubPlaceholderExtension) Version() string       { return e.version }
func (hubPlaceholderExtension) OnRegistered() error     { return nil }
func (hubPlaceholderExtension) OnUnregistered()         {}

// hubVersion is the version string published for the hub itself in its own
// shared-state snapshot.
const hubVersion = "1.0.0"

// registerPlaceholder builds and starts the hub placeholder container
// directly, bypassing the hub lane and the normal RegisterExtension
// completion flow: it exists before any user registration can occur and
// is never subject to duplicate-name or registry-mutation races.
func (h *Hub) registerPlaceholder() {
	container := &extensionContainer{
		extension:      hubPlaceholderExtension{version: hubVersion},
		name:           hubPlaceholderName,
		friendlyName:   "EventHub",
		version:        hubVersion,
		standardStates: state.New(),
		xdmStates:      state.New(),
		logger:         h.logger,
	}
	container.processor = dispatch.New(container.name, container.handleEvent,
		dispatch.WithInitialJob[*Event](container.runOnRegistered),
		dispatch.WithFinalJob[*Event](container.runOnUnregistered),
		dispatch.WithLogger[*Event](dispatchLoggerAdapter{h.logger}),
	)
	container.processor.Start()
	h.placeholder = container
}

// publishHubState republishes the hub shared-state snapshot from a caller
// not already running on the hub lane (the extension-container lane, via
// extensionContainer.onRegisteredSuccess).
func (h *Hub) publishHubState() {
	h.runOnHubLane(h.publishHubStateLocked)
}

// publishHubStateLocked is publishHubState's body, for callers already
// running on the hub lane. It is a no-op before Start, per §4.5: "It is
// republished... whenever the registry changes and the hub has started."
func (h *Hub) publishHubStateLocked() {
	if !h.started.Load() {
		return
	}

	h.mu.RLock()
	extensions := make(map[string]any, len(h.registry))
	for _, c := range h.registry {
		extensions[c.friendlyName] = map[string]any{
			"version":      c.version,
			"friendlyName": c.friendlyName,
		}
	}
	h.mu.RUnlock()

	version := h.counter.Add(1)
	snapshot := map[string]any{
		"version":    hubVersion,
		"extensions": extensions,
	}
	converted, err := value.MapFromAny(snapshot)
	if err != nil {
		h.logger.Error("encode hub shared state snapshot", "error", err)
		return
	}
	h.placeholder.standardStates.Set(converted, version)

	notification := NewEvent(EventTypeHub, EventSourceSharedState, map[string]value.Value{
		"stateowner": value.String(hubPlaceholderName),
	})
	h.dispatchLocked(notification)
}

// publishStateChangeLocked dispatches the §4.3 "Dispatch-on-set"
// notification naming the extension and state-type whose state just
// transitioned to SET. Callers must already be on the hub lane.
func (h *Hub) publishStateChangeLocked(stateType StateType, container *extensionContainer) {
	notification := NewEvent(EventTypeHub, EventSourceSharedState, map[string]value.Value{
		"stateowner": value.String(container.name),
		"statetype":  value.String(stateType.String()),
	})
	h.dispatchLocked(notification)
}
