// Package hal binds a blockdev.Device to the three callbacks a flash
// filesystem engine drives: read, write and erase.
//
// The engine speaks in int32 status codes. Every callback built by an Adapter
// converts backend errors and panics into StatusCallbackFailed so the engine
// always receives a well-formed status. The failure detail is logged and kept
// on the adapter until the owner collects it with TakeFailure.
//
// Status also carries the engine's fixed error registry, see Status.String and
// Status.Symbol.
package hal
