package httpapi

import (
	"errors"
	"net/http"

	"cartflow/internal/cart"
)

// payloadError is a 400 raised by this package itself — a bad request
// shape, not a domain-rule violation — mirroring client_error.rs's
// ClientError::Payload variant.
type payloadError struct{ msg string }

func (e *payloadError) Error() string { return e.msg }

func newPayloadError(msg string) error { return &payloadError{msg: msg} }

// classify maps an error to its HTTP status and client-visible message
// (spec §7): domain rule violations and payload errors are 400s with
// their message passed through, everything else — storage, the decision
// engine, exhausted concurrency retries — is an opaque 500.
func classify(err error) (int, string) {
	var payload *payloadError
	if errors.As(err, &payload) {
		return http.StatusBadRequest, payload.msg
	}

	var uuidErr *cart.UUIDNotCompatibleError
	if errors.As(err, &uuidErr) {
		return http.StatusBadRequest, err.Error()
	}

	for _, sentinel := range []error{
		cart.ErrIDConsumed,
		cart.ErrCartDoesNotExist,
		cart.ErrCannotAddItemCartFull,
		cart.ErrCannotRemoveItem,
		cart.ErrCannotSubmitEmptyCart,
		cart.ErrCannotSubmitCartTwice,
		cart.ErrCartCannotBeAltered,
	} {
		if errors.Is(err, sentinel) {
			return http.StatusBadRequest, err.Error()
		}
	}

	return http.StatusInternalServerError, "please ask your system administrator to check the logs"
}
