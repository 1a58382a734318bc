package eventhub

import "github.com/sdkcore/eventhub/value"

// Extension is implemented by a feature module hosted in its own
// ExtensionContainer. The instance declares its own identity (name,
// friendly name, version) rather than having it assigned externally,
// matching spec §3 "exposed by the extension instance at construction".
type Extension interface {
	// Name is the unique, case-sensitive registration key (§3).
	Name() string
	// FriendlyName is the human-readable identity published in hub shared
	// state (§4.5).
	FriendlyName() string
	// Version is an arbitrary caller-defined version string, also
	// published in hub shared state.
	Version() string
	// OnRegistered runs once, on the container's own lane, before the
	// container starts draining events (§4.4 "startup barrier"). Returning
	// an error stops the container in STOPPED and discards anything
	// queued in the meantime.
	OnRegistered() error
	// OnUnregistered runs once, on the container's own lane, during
	// shutdown (§4.4).
	OnUnregistered()
}

// ExtensionFactory constructs an Extension given its ExtensionAPI handle.
// This replaces the source's reflective construction-from-class-token
// (spec §9 "Dynamic extension classes") with plain dependency injection: a
// closure (or a type's method value) that builds the extension and wires it
// to the hub through api, with no reflection involved.
type ExtensionFactory func(api *ExtensionAPI) (Extension, error)

// ExtensionAPI is the handle an Extension uses to talk back to the hub. It
// is scoped to a single extension's name so that shared-state and listener
// calls never need the caller to repeat it.
type ExtensionAPI struct {
	hub           *Hub
	extensionName string
}

// Dispatch introduces a new event to the hub (§6 "dispatch(event) —
// fire-and-forget").
func (a *ExtensionAPI) Dispatch(e *Event) {
	a.hub.Dispatch(e)
}

// NewEvent builds an Event using the owning Hub's configured IDGenerator,
// the extension-scoped equivalent of Hub.NewEvent.
func (a *ExtensionAPI) NewEvent(eventType, source string, payload map[string]value.Value, opts ...EventOption) *Event {
	return a.hub.NewEvent(eventType, source, payload, opts...)
}

// RegisterListener attaches a listener to this extension's own container
// (§4.4 "registerEventListener"). Either field may be the wildcard "*".
func (a *ExtensionAPI) RegisterListener(eventType, eventSource string, callback func(*Event)) error {
	return a.hub.registerContainerListener(a.extensionName, eventType, eventSource, callback)
}

// SetSharedState implements the extension-scoped half of §6's
// setSharedState, for the given state-type.
func (a *ExtensionAPI) SetSharedState(stateType StateType, data map[string]any, event *Event, onError func(ExtensionError)) bool {
	return a.hub.SetSharedState(stateType, a.extensionName, data, event, onError)
}

// GetSharedState implements the extension-scoped half of §6's
// getSharedState.
func (a *ExtensionAPI) GetSharedState(stateType StateType, event *Event, onError func(ExtensionError)) (map[string]any, bool) {
	return a.hub.GetSharedState(stateType, a.extensionName, event, onError)
}

// ClearSharedState implements the extension-scoped half of §6's
// clearSharedState.
func (a *ExtensionAPI) ClearSharedState(stateType StateType, onError func(ExtensionError)) bool {
	return a.hub.ClearSharedState(stateType, a.extensionName, onError)
}

// RegisterResponseListener registers a one-shot response listener (§4.2.3)
// on behalf of this extension.
func (a *ExtensionAPI) RegisterResponseListener(trigger *Event, timeoutMs int64, callback ResponseCallback) {
	a.hub.RegisterResponseListener(trigger, timeoutMs, callback)
}
