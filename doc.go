// Package eventhub implements the Event Hub: the cooperative dispatch
// kernel at the core of the mobile SDK runtime. It delivers ordered events
// to a set of registered extensions, each isolated on its own lane, and
// maintains a versioned shared-state store per extension per state-type.
//
// A minimal host wires a Hub, registers extensions via factories, starts
// it, and dispatches events:
//
//	hub := eventhub.NewHub(eventhub.WithLogger(myLogger))
//	hub.RegisterExtension(myExtensionFactory, func(err eventhub.RegistrationError) {
//		if err != eventhub.RegistrationErrorNone {
//			myLogger.Error("registration failed", "error", err)
//		}
//	})
//	hub.Start()
//	hub.Dispatch(eventhub.NewEvent("com.example.type", "com.example.source", payload))
//	defer hub.Shutdown()
//
// See the dispatch, state, and history subpackages for the primitives the
// hub is built from.
package eventhub
