// Package cart implements the pure decision logic and event shapes of the
// shopping-cart domain (C9): fold state plus the seven commands'
// precondition checks, transcribed from the reference Rust decisions.
package cart

import "github.com/pkg/errors"

// Domain errors (spec §7), deterministic rule violations surfaced to
// clients as 400s. Message text matches
// original_source/src/domain/cart/errors.rs verbatim.
var (
	// ErrIDConsumed mirrors errors.rs's IdConsumed variant, which the
	// original decisions declare but never return; kept for parity and
	// classified alongside the other sentinels in case a future decision
	// needs it.
	ErrIDConsumed            = errors.New("id is not unique")
	ErrCartDoesNotExist      = errors.New("cart does not exist")
	ErrCannotAddItemCartFull = errors.New("cannot add item: cart is full (max 3 items)")
	ErrCannotRemoveItem      = errors.New("cannot remove item: item not in cart")
	ErrCannotSubmitEmptyCart = errors.New("cannot submit an empty cart")
	ErrCannotSubmitCartTwice = errors.New("cannot submit cart twice")
	ErrCartCannotBeAltered   = errors.New("cart has been submitted: cannot be altered")
)
