package eventhub

import "errors"

// Registration errors, surfaced via RegisterExtension/UnregisterExtension completions.
var (
	ErrExtensionFactoryNil           = errors.New("extension factory is nil")
	ErrExtensionInitializationFailed = errors.New("extension construction or onRegistered failed")
	ErrExtensionNotRegistered        = errors.New("extension not registered")
	ErrExtensionNameBlank            = errors.New("extension name is blank")
)

// RegistrationError mirrors spec §6's completion error enum
// {None, InvalidExtensionName, DuplicateExtensionName, ExtensionInitializationFailure,
// ExtensionNotRegistered, Unknown}. None is the zero value so a successful
// completion need not special-case anything.
type RegistrationError int

const (
	RegistrationErrorNone RegistrationError = iota
	RegistrationErrorInvalidExtensionName
	RegistrationErrorDuplicateExtensionName
	RegistrationErrorExtensionInitializationFailure
	RegistrationErrorExtensionNotRegistered
	RegistrationErrorUnknown
)

func (e RegistrationError) String() string {
	switch e {
	case RegistrationErrorNone:
		return "None"
	case RegistrationErrorInvalidExtensionName:
		return "InvalidExtensionName"
	case RegistrationErrorDuplicateExtensionName:
		return "DuplicateExtensionName"
	case RegistrationErrorExtensionInitializationFailure:
		return "ExtensionInitializationFailure"
	case RegistrationErrorExtensionNotRegistered:
		return "ExtensionNotRegistered"
	default:
		return "Unknown"
	}
}

// ExtensionError is surfaced via the onError callback of the shared-state
// APIs (§7). A stale-version attempt is NOT an error: it is reported as a
// plain `false` return with no ExtensionError.
type ExtensionError int

const (
	ExtensionErrorBadName ExtensionError = iota
	ExtensionErrorExtensionNotRegistered
	ExtensionErrorUnexpectedError
)

func (e ExtensionError) String() string {
	switch e {
	case ExtensionErrorBadName:
		return "BAD_NAME"
	case ExtensionErrorExtensionNotRegistered:
		return "EXTENSION_NOT_REGISTERED"
	default:
		return "UNEXPECTED_ERROR"
	}
}

// AdobeError is the failure reason delivered to a response-listener's Fail
// callback. CallbackTimeout is the only reason the core hub ever produces;
// the type is open-ended so hosts can extend it for their own completions.
type AdobeError int

const (
	AdobeErrorCallbackTimeout AdobeError = iota
	AdobeErrorUnexpected
)

func (e AdobeError) String() string {
	switch e {
	case AdobeErrorCallbackTimeout:
		return "CALLBACK_TIMEOUT"
	default:
		return "UNEXPECTED_ERROR"
	}
}
