package apperrors

import (
	"errors"
	"fmt"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/status"
)

// Domain is the ErrorInfo domain of every status this server returns.
const Domain = "tycoon.boardtycoon.github.com"

// internalMessage is the only text clients see for unexpected failures.
const internalMessage = "an unexpected error occurred"

// Error is a failed game command. Message is shown to players for every
// code except CodeInternal, whose detail stays in the server log.
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]string // copied into ErrorInfo.Metadata
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Code == t.Code
}

// clientMessage is the text a player may see for e.
func (e *Error) clientMessage() string {
	if e.Code.Kind() == KindInternal {
		return internalMessage
	}
	return e.Message
}

func newf(code Code, metadata map[string]string, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Metadata: metadata}
}

// GameNotFound reports a missing game.
func GameNotFound(gameID string) *Error {
	return newf(CodeGameNotFound, map[string]string{"game_id": gameID},
		"game not found with id: %s", gameID)
}

// PlayerNotFound reports a username that is not part of the game roster.
func PlayerNotFound(username string) *Error {
	return newf(CodePlayerNotFound, map[string]string{"username": username},
		"player not found with username: %s", username)
}

// PropertyNotFound reports a property name or position with no match in the game.
func PropertyNotFound(ref string) *Error {
	return newf(CodePropertyNotFound, map[string]string{"property": ref},
		"property not found: %s", ref)
}

// AuctionNotFound reports a bid or settlement with no open auction.
func AuctionNotFound(gameID, gameName string) *Error {
	return newf(CodeAuctionNotFound, map[string]string{"game_id": gameID},
		"no auction is running in game %s", gameName)
}

// InvalidAction reports a command the current game state does not allow.
func InvalidAction(format string, args ...any) *Error {
	return newf(CodeInvalidAction, nil, format, args...)
}

// InvalidArgument reports a malformed command field.
func InvalidArgument(format string, args ...any) *Error {
	return newf(CodeInvalidArgument, nil, format, args...)
}

// InsufficientFunds reports a player balance that cannot cover an amount.
func InsufficientFunds(format string, args ...any) *Error {
	return newf(CodeInsufficientFunds, nil, format, args...)
}

// PermissionDenied reports an administrative command without credentials.
func PermissionDenied(format string, args ...any) *Error {
	return newf(CodePermissionDenied, nil, format, args...)
}

// Internal wraps an unexpected failure. Clients only see a generic message.
func Internal(message string, cause error) *Error {
	return &Error{Code: CodeInternal, Message: message, Cause: cause}
}

// GetCode returns the code of the first *Error in err's chain, or
// CodeInternal when there is none.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsCode reports whether err carries code.
func IsCode(err error, code Code) bool {
	return GetCode(err) == code
}

// KindOf returns the failure category of err.
func KindOf(err error) Kind {
	return GetCode(err).Kind()
}

// ToStatus converts err into a gRPC status error for client responses.
// Statuses pass through; every other failure gets an ErrorInfo detail with
// its code as the reason.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var appErr *Error
	if !errors.As(err, &appErr) {
		appErr = Internal(internalMessage, err)
	}

	st := status.New(appErr.Code.GRPCCode(), appErr.clientMessage())
	info := &errdetails.ErrorInfo{Reason: string(appErr.Code), Domain: Domain}
	if appErr.Code.Kind() != KindInternal {
		info.Metadata = appErr.Metadata
	}
	detailed, detailErr := st.WithDetails(info)
	if detailErr != nil {
		return st.Err()
	}
	return detailed.Err()
}

// Payload renders err as the error object of a websocket frame.
func Payload(err error) map[string]any {
	var appErr *Error
	if !errors.As(err, &appErr) {
		appErr = Internal(internalMessage, err)
	}
	return map[string]any{
		"code":    string(appErr.Code),
		"kind":    appErr.Code.Kind().String(),
		"message": appErr.clientMessage(),
	}
}
