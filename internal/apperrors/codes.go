// Package apperrors provides the engine's structured error codes and their
// mapping onto transport status codes.
package apperrors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeInternal represents an unexpected failure.
	CodeInternal Code = "INTERNAL"

	// Lookup errors
	CodeGameNotFound     Code = "GAME_NOT_FOUND"
	CodePlayerNotFound   Code = "PLAYER_NOT_FOUND"
	CodePropertyNotFound Code = "PROPERTY_NOT_FOUND"
	CodeAuctionNotFound  Code = "AUCTION_NOT_FOUND"

	// Rule violations
	CodeInvalidAction   Code = "INVALID_ACTION"
	CodeInvalidArgument Code = "INVALID_ARGUMENT"

	// Administrative commands without valid credentials
	CodePermissionDenied Code = "PERMISSION_DENIED"

	// Economy
	CodeInsufficientFunds Code = "INSUFFICIENT_FUNDS"
)

// Kind groups codes into the broad failure categories clients react to.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindInvalidAction
	KindInsufficientFunds
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NOT_FOUND"
	case KindInvalidAction:
		return "INVALID_ACTION"
	case KindInsufficientFunds:
		return "INSUFFICIENT_FUNDS"
	default:
		return "INTERNAL"
	}
}

// Kind returns the category the code belongs to.
func (c Code) Kind() Kind {
	switch c {
	case CodeGameNotFound, CodePlayerNotFound, CodePropertyNotFound, CodeAuctionNotFound:
		return KindNotFound
	case CodeInvalidAction, CodeInvalidArgument, CodePermissionDenied:
		return KindInvalidAction
	case CodeInsufficientFunds:
		return KindInsufficientFunds
	default:
		return KindInternal
	}
}

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - malformed command fields
	case CodeInvalidArgument:
		return codes.InvalidArgument

	case CodePermissionDenied:
		return codes.PermissionDenied

	// FailedPrecondition - game state doesn't allow the command
	case CodeInvalidAction,
		CodeInsufficientFunds:
		return codes.FailedPrecondition

	// NotFound - entity doesn't exist
	case CodeGameNotFound,
		CodePlayerNotFound,
		CodePropertyNotFound,
		CodeAuctionNotFound:
		return codes.NotFound

	default:
		return codes.Internal
	}
}
