package eventhub

import (
	"sync"
	"sync/atomic"

	"github.com/sdkcore/eventhub/dispatch"
	"github.com/sdkcore/eventhub/state"
)

// containerState is the lifecycle of an ExtensionContainer (spec §3):
// REGISTERING -> REGISTERED -> (STOPPED). Only REGISTERED containers
// receive events.
type containerState int32

const (
	containerRegistering containerState = iota
	containerRegistered
	containerStopped
)

// extensionContainer wraps a single Extension instance (spec §4.4). It owns
// its own event processor (a Serial Work Dispatcher), its listener table,
// and its two shared-state managers.
type extensionContainer struct {
	extension Extension
	api       *ExtensionAPI

	name         string
	friendlyName string
	version      string

	standardStates *state.Store
	xdmStates      *state.Store

	listeners sync.Mutex
	table     listenerTable

	processor *dispatch.Dispatcher[*Event]
	state     atomic.Int32

	logger Logger

	// onRegisteredComplete fires exactly once, from the container's own
	// lane, when onRegistered returns or fails (§4.2.1 "When that callback
	// returns... the completion callback fires").
	onRegisteredComplete func(RegistrationError)
	// onRegisteredSuccess fires after onRegisteredComplete, only on
	// success; Hub uses it to republish hub shared state (§4.2.1 "After
	// each successful registration...").
	onRegisteredSuccess func()
}

// newExtensionContainer constructs and registers an extension instance via
// factory, wiring its event processor but not yet starting it: the caller
// (Hub.RegisterExtension) starts the processor once the container is
// inserted into the registry, so that onRegistered runs on the container's
// own lane rather than the hub lane (§4.4 "startup barrier").
func newExtensionContainer(hub *Hub, factory ExtensionFactory) (*extensionContainer, error) {
	if factory == nil {
		return nil, ErrExtensionFactoryNil
	}

	c := &extensionContainer{logger: hub.logger}
	api := &ExtensionAPI{hub: hub}
	c.api = api

	ext, err := factory(api)
	if err != nil || ext == nil {
		return nil, ErrExtensionInitializationFailed
	}
	if ext.Name() == "" {
		return nil, ErrExtensionNameBlank
	}

	api.extensionName = ext.Name()
	c.extension = ext
	c.name = ext.Name()
	c.friendlyName = ext.FriendlyName()
	c.version = ext.Version()
	c.standardStates = state.New()
	c.xdmStates = state.New()
	c.state.Store(int32(containerRegistering))

	c.processor = dispatch.New(c.name, c.handleEvent,
		dispatch.WithInitialJob[*Event](c.runOnRegistered),
		dispatch.WithFinalJob[*Event](c.runOnUnregistered),
		dispatch.WithLogger[*Event](dispatchLoggerAdapter{c.logger}),
	)
	return c, nil
}

// registerListener appends a listener to this container's table (§4.4
// "registerEventListener"). No de-duplication, wildcards permitted.
func (c *extensionContainer) registerListener(eventType, eventSource string, callback func(*Event)) {
	c.listeners.Lock()
	c.table.add(eventType, eventSource, callback)
	c.listeners.Unlock()
}

// runOnRegistered is the container processor's initial job. A false return
// (onRegistered failure) stops the processor before it ever
// drains, per §4.4: "If onRegistered throws, the container transitions to
// STOPPED and all queued events are discarded."
func (c *extensionContainer) runOnRegistered() bool {
	if err := c.extension.OnRegistered(); err != nil {
		c.logger.Error("extension onRegistered failed", "extension", c.name, "error", err)
		c.state.Store(int32(containerStopped))
		if c.onRegisteredComplete != nil {
			c.onRegisteredComplete(RegistrationErrorExtensionInitializationFailure)
		}
		return false
	}
	c.state.Store(int32(containerRegistered))
	if c.onRegisteredComplete != nil {
		c.onRegisteredComplete(RegistrationErrorNone)
	}
	if c.onRegisteredSuccess != nil {
		c.onRegisteredSuccess()
	}
	return true
}

// runOnUnregistered is the container processor's final job, run during
// Shutdown (§4.4 "Shutdown. Offer a final job that invokes
// onUnregistered...").
func (c *extensionContainer) runOnUnregistered() {
	c.state.Store(int32(containerStopped))
	c.extension.OnUnregistered()
}

// handleEvent is the container processor's work handler: find every
// listener matching e, in registration order, and invoke each, catching and
// logging panics so that one faulty listener never stops its siblings nor
// halts the processor (§4.4, §7 "Listener callback errors").
func (c *extensionContainer) handleEvent(e *Event) {
	c.listeners.Lock()
	matches := c.table.matching(e)
	c.listeners.Unlock()

	for _, entry := range matches {
		c.invokeListener(entry, e)
	}
}

func (c *extensionContainer) invokeListener(entry listenerEntry, e *Event) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("listener callback panicked", "extension", c.name, "event", e.ID(), "panic", r)
		}
	}()
	entry.handler(e)
}

// isRegistered reports whether the container currently accepts events.
func (c *extensionContainer) isRegistered() bool {
	return containerState(c.state.Load()) == containerRegistered
}

// dispatchLoggerAdapter adapts eventhub.Logger to dispatch.Logger (Verbose,
// Error only), keeping dispatch free of an import back to this package.
type dispatchLoggerAdapter struct{ logger Logger }

func (a dispatchLoggerAdapter) Verbose(msg string, args ...any) { a.logger.Verbose(msg, args...) }
func (a dispatchLoggerAdapter) Error(msg string, args ...any)   { a.logger.Error(msg, args...) }
