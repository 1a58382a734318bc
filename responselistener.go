package eventhub

import "sync"

// ResponseCallback receives the outcome of a request/response registration
// (spec §4.2.3): either the matching response event, or an AdobeError if the
// request timed out or the hub could not deliver it.
type ResponseCallback interface {
	OnResponse(response *Event)
	OnError(err AdobeError)
}

// FuncResponseCallback adapts two plain functions to ResponseCallback,
// mirroring the teacher's FunctionalObserver convenience constructor
// (observer.go) for callers who would rather not define a struct.
type FuncResponseCallback struct {
	onResponse func(*Event)
	onError    func(AdobeError)
}

// NewFuncResponseCallback builds a ResponseCallback from two handler
// functions. Either may be nil if the caller doesn't care about that
// outcome.
func NewFuncResponseCallback(onResponse func(*Event), onError func(AdobeError)) ResponseCallback {
	return &FuncResponseCallback{onResponse: onResponse, onError: onError}
}

func (f *FuncResponseCallback) OnResponse(response *Event) {
	if f.onResponse != nil {
		f.onResponse(response)
	}
}

func (f *FuncResponseCallback) OnError(err AdobeError) {
	if f.onError != nil {
		f.onError(err)
	}
}

// responseListenerEntry is one pending registration (spec §3 "response-
// listener entry"): it is keyed both by its own id (for removal, e.g. on
// timeout) and by the trigger event id it is waiting on (for matching an
// incoming response).
type responseListenerEntry struct {
	id        string
	triggerID string
	callback  ResponseCallback
	cancel    CancelHandle
}

// responseListenerRegistry tracks pending response listeners, guaranteeing
// that each is resolved (matched, timed out, or explicitly removed) exactly
// once (Invariant, spec §4.2.3 "exactly one outcome").
type responseListenerRegistry struct {
	mu        sync.Mutex
	byID      map[string]*responseListenerEntry
	byTrigger map[string][]*responseListenerEntry
}

func newResponseListenerRegistry() *responseListenerRegistry {
	return &responseListenerRegistry{
		byID:      make(map[string]*responseListenerEntry),
		byTrigger: make(map[string][]*responseListenerEntry),
	}
}

// register adds a new pending entry under id and returns the entry; id is
// used later to remove it explicitly (e.g. on timeout).
func (r *responseListenerRegistry) register(triggerID string, callback ResponseCallback, id string) *responseListenerEntry {
	entry := &responseListenerEntry{id: id, triggerID: triggerID, callback: callback}
	r.mu.Lock()
	r.byID[id] = entry
	r.byTrigger[triggerID] = append(r.byTrigger[triggerID], entry)
	r.mu.Unlock()
	return entry
}

// setCancel attaches the timeout CancelHandle to entry, once the scheduler
// has actually armed it. Guarded by r.mu so that it synchronizes with
// cancelHandle's read below: entry.cancel is otherwise written here and
// read concurrently from the event-dispatch lane the moment a matching
// response arrives, which is a data race without a shared lock between the
// two (RegisterResponseListener's ScheduleAfter call and a racing dispatch
// of the response can interleave in either order).
func (r *responseListenerRegistry) setCancel(entry *responseListenerEntry, cancel CancelHandle) {
	r.mu.Lock()
	entry.cancel = cancel
	r.mu.Unlock()
}

// cancelHandle reads entry.cancel under r.mu, the read-side counterpart of
// setCancel.
func (r *responseListenerRegistry) cancelHandle(entry *responseListenerEntry) CancelHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return entry.cancel
}

// removeByID removes and returns the entry for id, if it is still pending.
// Safe to call concurrently with extractMatching: whichever call observes
// the entry first "wins" it, satisfying the exactly-once guarantee.
func (r *responseListenerRegistry) removeByID(id string) (*responseListenerEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	r.delete(entry)
	return entry, true
}

// extractMatching removes and returns every entry waiting on triggerID, so
// that a response event can be delivered to each at most once.
func (r *responseListenerRegistry) extractMatching(triggerID string) []*responseListenerEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	pending := r.byTrigger[triggerID]
	if len(pending) == 0 {
		return nil
	}
	matched := make([]*responseListenerEntry, len(pending))
	copy(matched, pending)
	for _, entry := range matched {
		r.delete(entry)
	}
	return matched
}

// delete removes entry from both indices. Callers must hold r.mu.
func (r *responseListenerRegistry) delete(entry *responseListenerEntry) {
	delete(r.byID, entry.id)
	siblings := r.byTrigger[entry.triggerID]
	for i, candidate := range siblings {
		if candidate == entry {
			siblings = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}
	if len(siblings) == 0 {
		delete(r.byTrigger, entry.triggerID)
	} else {
		r.byTrigger[entry.triggerID] = siblings
	}
}
