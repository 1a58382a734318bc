package eventhub

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sdkcore/eventhub/dispatch"
	"github.com/sdkcore/eventhub/history"
	"github.com/sdkcore/eventhub/state"
	"github.com/sdkcore/eventhub/value"
)

// versionLatest is the sentinel "version" used for reads when no event
// pins them to a specific version (§4.3 "Versioning rule at the hub").
const versionLatest = int64(math.MaxInt64)

// hubPlaceholderName is the reserved extension name of the built-in
// placeholder that hosts unattributed listeners and publishes hub shared
// state (§4.5). It is excluded from ordinary registration/unregistration.
const hubPlaceholderName = "com.adobe.eventhub.placeholder"

// HubOption configures a Hub at construction time.
type HubOption func(*Hub)

// WithLogger attaches a Logger. The default is a no-op logger (§9
// "Logging side effects... the dispatcher must function with a no-op
// logger").
func WithLogger(logger Logger) HubOption {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithScheduler attaches a Scheduler used for response-listener timeouts.
// The default is a time.AfterFunc-backed implementation.
func WithScheduler(scheduler Scheduler) HubOption {
	return func(h *Hub) {
		if scheduler != nil {
			h.scheduler = scheduler
		}
	}
}

// WithIDGenerator attaches the IDGenerator this Hub uses for its own
// identifiers: event ids minted through Hub.NewEvent, and the internal
// bookkeeping ids response-listener registrations are tracked by. The
// default generates UUIDv7 strings. Events created through the
// package-level NewEvent, rather than Hub.NewEvent, are unaffected — they
// always use the package's own default generator.
func WithIDGenerator(gen IDGenerator) HubOption {
	return func(h *Hub) {
		if gen != nil {
			h.idGen = gen
		}
	}
}

// WithHistorySink enables the optional bounded event-history sink (§4.2.2
// step 3): events dispatched with a non-nil Mask are recorded here, up to
// capacity entries.
func WithHistorySink(capacity int) HubOption {
	return func(h *Hub) {
		sink, err := history.New(capacity)
		if err == nil {
			h.history = sink
		}
	}
}

// Hub is the façade and single serialization point for mutating operations
// described in §4.2: registration, dispatch, state set/get/clear,
// response-listener installation, start, shutdown.
type Hub struct {
	logger    Logger
	scheduler Scheduler
	idGen     IDGenerator
	history   *history.Sink

	// hubLane is the hub's serialization queue (§5 "Hub lane"): every
	// mutating operation below runs as a closure offered to it, so that
	// the registry, counter, and response-listener set only ever mutate
	// from this one worker. It is started immediately at construction,
	// independent of Hub.Start/Shutdown.
	hubLane *dispatch.Dispatcher[func()]

	// eventDispatcher is the hub's own Serial Work Dispatcher (§2 item 6,
	// §5 "Event-dispatch lane"): it drains accepted events in order and
	// fans each out to every registered container. It only starts
	// draining once Start is called.
	eventDispatcher *dispatch.Dispatcher[*Event]

	mu          sync.RWMutex
	registry    map[string]*extensionContainer
	placeholder *extensionContainer

	counter      atomic.Int64
	eventNumbers sync.Map // event id (string) -> event number (int64)

	responseListeners *responseListenerRegistry

	started atomic.Bool
}

// NewHub constructs a Hub in its pre-start state: the hub lane is already
// running (so extensions can register before Start), but no events drain
// until Start is called.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		logger:            NoopLogger(),
		scheduler:         NewTimerScheduler(),
		idGen:             NewUUIDGenerator(),
		registry:          make(map[string]*extensionContainer),
		responseListeners: newResponseListenerRegistry(),
	}
	for _, opt := range opts {
		opt(h)
	}

	h.hubLane = dispatch.New("hub-lane", func(job func()) { job() },
		dispatch.WithLogger[func()](dispatchLoggerAdapter{h.logger}))
	h.hubLane.Start()

	h.eventDispatcher = dispatch.New("hub-dispatcher", h.handleEvent,
		dispatch.WithLogger[*Event](dispatchLoggerAdapter{h.logger}))

	h.registerPlaceholder()
	return h
}

// runOnHubLane offers f to the hub lane and blocks until it has run,
// implementing the "synchronous by contract" guarantee §5 promises for
// setSharedState/getSharedState/clearSharedState and the other hub-lane
// APIs exposed here.
func (h *Hub) runOnHubLane(f func()) {
	done := make(chan struct{})
	if !h.hubLane.Offer(func() {
		defer close(done)
		f()
	}) {
		return
	}
	<-done
}

// RegisterExtension implements registerExtension (§4.2.1). When the
// container is created and its name is free, completion is invoked
// asynchronously, from the new extension's own lane, once onRegistered
// returns (or fails) — not synchronously with this call. A nil factory, a
// failed or blank-named construction, or a duplicate name is instead
// reported to completion on the hub lane, before this call returns.
func (h *Hub) RegisterExtension(factory ExtensionFactory, completion func(RegistrationError)) {
	if completion == nil {
		completion = func(RegistrationError) {}
	}
	h.runOnHubLane(func() {
		container, err := newExtensionContainer(h, factory)
		if err != nil {
			switch err {
			case ErrExtensionNameBlank:
				completion(RegistrationErrorInvalidExtensionName)
			case ErrExtensionFactoryNil, ErrExtensionInitializationFailed:
				completion(RegistrationErrorExtensionInitializationFailure)
			default:
				completion(RegistrationErrorUnknown)
			}
			return
		}

		h.mu.Lock()
		if _, exists := h.registry[container.name]; exists {
			h.mu.Unlock()
			completion(RegistrationErrorDuplicateExtensionName)
			return
		}
		container.onRegisteredComplete = completion
		container.onRegisteredSuccess = h.publishHubState
		h.registry[container.name] = container
		h.mu.Unlock()

		container.processor.Start()
	})
}

// UnregisterExtension implements unregisterExtension (§4.2.1).
func (h *Hub) UnregisterExtension(name string, completion func(RegistrationError)) {
	if completion == nil {
		completion = func(RegistrationError) {}
	}
	h.runOnHubLane(func() {
		if name == hubPlaceholderName {
			// §9 open question, resolved: the placeholder hosts
			// hub-internal listeners and must survive user-initiated
			// unregistration.
			completion(RegistrationErrorExtensionNotRegistered)
			return
		}
		h.mu.RLock()
		container, ok := h.registry[name]
		h.mu.RUnlock()
		if !ok {
			completion(RegistrationErrorExtensionNotRegistered)
			return
		}

		// container.processor.Shutdown() runs OnUnregistered (§4.4), which
		// may call back into the hub through its ExtensionAPI. Running it
		// here, inline in the hub-lane closure, would self-deadlock the
		// same way described on Hub.Shutdown: the hub lane's one worker
		// would block waiting for OnUnregistered, while OnUnregistered's
		// own hub call waits for that same worker. Finish the shutdown off
		// the hub lane instead, the way RegisterExtension's completion
		// already runs from the container's own lane rather than the hub's.
		//
		// name is deliberately kept in h.registry until the old container
		// has actually finished shutting down: removing it up front would
		// let a new RegisterExtension reuse name while OnUnregistered is
		// still running, and any shared-state call OnUnregistered makes in
		// the meantime would then resolve, by name, to the wrong (new)
		// container.
		go func() {
			container.processor.Shutdown()

			h.mu.Lock()
			delete(h.registry, name)
			h.mu.Unlock()

			completion(RegistrationErrorNone)
			h.publishHubState()
		}()
	})
}

// Dispatch implements dispatch(event) (§4.2.2): fire-and-forget. It assigns
// the next event number on the hub lane, then hands the event to the
// event-dispatch lane.
func (h *Hub) Dispatch(e *Event) {
	h.runOnHubLane(func() { h.dispatchLocked(e) })
}

// NewEvent constructs a new Event using this Hub's configured IDGenerator
// (§6 "an identifier generator producing globally-unique strings for event
// ids"), rather than the package-level default. Callers that want a
// Hub's WithIDGenerator option to actually govern the ids their events
// carry should build events this way instead of the package-level NewEvent.
func (h *Hub) NewEvent(eventType, source string, payload map[string]value.Value, opts ...EventOption) *Event {
	return newEventWithGenerator(h.idGen, eventType, source, payload, opts...)
}

// dispatchLocked is Dispatch's body, for callers already running on the hub
// lane (publishHubStateLocked, publishStateChangeLocked) that would
// deadlock if they went through runOnHubLane again.
func (h *Hub) dispatchLocked(e *Event) {
	number := h.counter.Add(1)
	h.eventNumbers.Store(e.ID(), number)
	if !h.eventDispatcher.Offer(e) {
		h.logger.Warn("dispatch offered after shutdown", "event", e.ID())
	}
}

// handleEvent is the event-dispatch lane's work handler (§4.2.2): for each
// event, resolve response listeners, then fan out to every registered
// container.
func (h *Hub) handleEvent(e *Event) {
	if triggerID, ok := e.ResponseID(); ok {
		h.resolveResponseListeners(triggerID, e)
	}

	h.mu.RLock()
	containers := make([]*extensionContainer, 0, len(h.registry)+1)
	for _, c := range h.registry {
		containers = append(containers, c)
	}
	if h.placeholder != nil {
		containers = append(containers, h.placeholder)
	}
	h.mu.RUnlock()

	for _, c := range containers {
		if !c.isRegistered() {
			continue
		}
		c.processor.Offer(e)
	}

	if h.history != nil && e.Mask() != nil {
		number, _ := h.eventNumbers.Load(e.ID())
		h.history.Record(history.Record{
			Number: number.(int64),
			ID:     e.ID(),
			Type:   e.Type(),
			Source: e.Source(),
			Mask:   e.Mask(),
		})
	}
}

func (h *Hub) resolveResponseListeners(triggerID string, response *Event) {
	for _, entry := range h.responseListeners.extractMatching(triggerID) {
		if cancel := h.responseListeners.cancelHandle(entry); cancel != nil {
			cancel.Cancel(false)
		}
		h.safeNotify(entry, response)
	}
}

func (h *Hub) safeNotify(entry *responseListenerEntry, response *Event) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("response listener callback panicked", "trigger", entry.triggerID, "panic", r)
		}
	}()
	entry.callback.OnResponse(response)
}

// RegisterResponseListener implements registerResponseListener (§4.2.3).
func (h *Hub) RegisterResponseListener(trigger *Event, timeoutMs int64, callback ResponseCallback) {
	h.runOnHubLane(func() {
		id := h.idGen.NewID()
		entry := h.responseListeners.register(trigger.ID(), callback, id)
		cancel := h.scheduler.ScheduleAfter(time.Duration(timeoutMs)*time.Millisecond, func() {
			if removed, ok := h.responseListeners.removeByID(id); ok {
				h.safeFail(removed, AdobeErrorCallbackTimeout)
			}
		})
		h.responseListeners.setCancel(entry, cancel)
	})
}

func (h *Hub) safeFail(entry *responseListenerEntry, reason AdobeError) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("response listener fail callback panicked", "trigger", entry.triggerID, "panic", r)
		}
	}()
	entry.callback.OnError(reason)
}

// RegisterListener implements registerListener (§4.2.4): it attaches to the
// built-in hub placeholder extension, for listeners not bound to any
// specific extension.
func (h *Hub) RegisterListener(eventType, eventSource string, callback func(*Event)) {
	h.placeholder.registerListener(eventType, eventSource, callback)
}

// registerContainerListener is used by ExtensionAPI.RegisterListener to
// attach a listener to a specific extension's own container.
func (h *Hub) registerContainerListener(extensionName, eventType, eventSource string, callback func(*Event)) error {
	h.mu.RLock()
	container, ok := h.registry[extensionName]
	h.mu.RUnlock()
	if !ok {
		return ErrExtensionNotRegistered
	}
	container.registerListener(eventType, eventSource, callback)
	return nil
}

// resolveVersion implements §4.3's "Versioning rule at the hub" for the
// given event, for either a set (wantLatest == false, uses
// counter.Add(1) as the fallback) or a get (wantLatest == true, falls back
// to versionLatest).
func (h *Hub) resolveVersion(event *Event, wantLatest bool) int64 {
	if event != nil {
		if number, ok := h.eventNumbers.Load(event.ID()); ok {
			return number.(int64)
		}
	}
	if wantLatest {
		return versionLatest
	}
	return h.counter.Add(1)
}

// resolveContainer looks up the container backing extensionName for the
// shared-state APIs. The hub placeholder (§4.5) is addressable by its fixed
// name here even though it never occupies a slot in h.registry, since it is
// the one publishing the hub's own "EventHub" shared-state snapshot and §4.5
// requires that snapshot be queryable the same way any other extension's
// state is.
func (h *Hub) resolveContainer(extensionName string) (*extensionContainer, bool) {
	if extensionName == hubPlaceholderName {
		return h.placeholder, h.placeholder != nil
	}
	h.mu.RLock()
	container, exists := h.registry[extensionName]
	h.mu.RUnlock()
	return container, exists
}

func (h *Hub) storeFor(stateType StateType, container *extensionContainer) *state.Store {
	if stateType == StateTypeXDM {
		return container.xdmStates
	}
	return container.standardStates
}

// SetSharedState implements setSharedState (§6, §4.3). data == nil requests
// a PENDING placeholder.
func (h *Hub) SetSharedState(stateType StateType, extensionName string, data map[string]any, event *Event, onError func(ExtensionError)) bool {
	if onError == nil {
		onError = func(ExtensionError) {}
	}
	if extensionName == "" {
		onError(ExtensionErrorBadName)
		return false
	}

	var ok bool
	h.runOnHubLane(func() {
		container, exists := h.resolveContainer(extensionName)
		if !exists {
			onError(ExtensionErrorExtensionNotRegistered)
			return
		}

		var converted map[string]value.Value
		if data != nil {
			var err error
			converted, err = value.MapFromAny(data)
			if err != nil {
				onError(ExtensionErrorUnexpectedError)
				return
			}
		}

		version := h.resolveVersion(event, false)
		status := h.storeFor(stateType, container).Set(converted, version)
		ok = status != state.StatusNotSet
		if status == state.StatusSet {
			h.publishStateChangeLocked(stateType, container)
		}
	})
	return ok
}

// GetSharedState implements getSharedState (§6, §4.3).
func (h *Hub) GetSharedState(stateType StateType, extensionName string, event *Event, onError func(ExtensionError)) (map[string]any, bool) {
	if onError == nil {
		onError = func(ExtensionError) {}
	}
	if extensionName == "" {
		onError(ExtensionErrorBadName)
		return nil, false
	}

	var result map[string]any
	var found bool
	h.runOnHubLane(func() {
		container, exists := h.resolveContainer(extensionName)
		if !exists {
			onError(ExtensionErrorExtensionNotRegistered)
			return
		}

		version := h.resolveVersion(event, true)
		data, ok := h.storeFor(stateType, container).Get(version)
		if !ok {
			return
		}
		result = value.MapToAny(data)
		found = true
	})
	return result, found
}

// ClearSharedState implements clearSharedState (§6, §4.3).
func (h *Hub) ClearSharedState(stateType StateType, extensionName string, onError func(ExtensionError)) bool {
	if onError == nil {
		onError = func(ExtensionError) {}
	}
	if extensionName == "" {
		onError(ExtensionErrorBadName)
		return false
	}

	var ok bool
	h.runOnHubLane(func() {
		container, exists := h.resolveContainer(extensionName)
		if !exists {
			onError(ExtensionErrorExtensionNotRegistered)
			return
		}
		h.storeFor(stateType, container).Clear()
		ok = true
	})
	return ok
}

// Start implements start() (§4.2.5): flips hubStarted, begins draining the
// event-dispatch lane, then republishes hub shared state.
func (h *Hub) Start() {
	h.runOnHubLane(func() {
		if h.started.CompareAndSwap(false, true) {
			h.eventDispatcher.Start()
			h.publishHubStateLocked()
		}
	})
}

// Shutdown implements shutdown() (§4.2.5): offers still pending on the hub
// lane are dropped in order, every registered container's dispatcher is
// shut down, and the registry is cleared.
//
// Each container's processor.Shutdown() runs its extension's OnUnregistered
// hook (§4.4), and OnUnregistered may call back into the hub (e.g. a
// synchronous SetSharedState/GetSharedState/ClearSharedState through its
// ExtensionAPI). Running those shutdowns from inside the hub-lane closure
// below would self-deadlock: the hub lane's single worker would be stuck
// waiting for a container's OnUnregistered to return, while OnUnregistered's
// callback waits for that same worker to drain the very closure it's
// running in. Container shutdown is therefore deferred until after the hub
// lane closure (and the hub lane itself) have released, and run
// concurrently across containers, matching the "per-extension lanes, one
// worker per container" independence the hub already gives them (§5).
func (h *Hub) Shutdown() {
	var containers []*extensionContainer
	h.runOnHubLane(func() {
		h.eventDispatcher.Shutdown()

		h.mu.Lock()
		containers = make([]*extensionContainer, 0, len(h.registry)+1)
		for _, c := range h.registry {
			containers = append(containers, c)
		}
		if h.placeholder != nil {
			containers = append(containers, h.placeholder)
		}
		h.registry = make(map[string]*extensionContainer)
		h.mu.Unlock()
	})
	h.hubLane.Shutdown()

	var wg sync.WaitGroup
	wg.Add(len(containers))
	for _, c := range containers {
		go func(c *extensionContainer) {
			defer wg.Done()
			c.processor.Shutdown()
		}(c)
	}
	wg.Wait()
}
