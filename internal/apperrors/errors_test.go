package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestCodeMapping(t *testing.T) {
	tests := []struct {
		code Code
		kind Kind
		grpc codes.Code
	}{
		{CodeGameNotFound, KindNotFound, codes.NotFound},
		{CodePlayerNotFound, KindNotFound, codes.NotFound},
		{CodePropertyNotFound, KindNotFound, codes.NotFound},
		{CodeAuctionNotFound, KindNotFound, codes.NotFound},
		{CodeInvalidAction, KindInvalidAction, codes.FailedPrecondition},
		{CodeInvalidArgument, KindInvalidAction, codes.InvalidArgument},
		{CodePermissionDenied, KindInvalidAction, codes.PermissionDenied},
		{CodeInsufficientFunds, KindInsufficientFunds, codes.FailedPrecondition},
		{CodeInternal, KindInternal, codes.Internal},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.code.Kind())
			assert.Equal(t, tt.grpc, tt.code.GRPCCode())
		})
	}
}

func TestErrorChain(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("buy: %w", Internal("store failed", cause))

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, Internal("other message", nil))
	assert.NotErrorIs(t, err, InvalidAction("store failed"))
	assert.Equal(t, CodeInternal, GetCode(err))
	assert.Equal(t, "buy: store failed: connection reset", err.Error())

	assert.Equal(t, CodeInternal, GetCode(errors.New("plain")))
	assert.True(t, IsCode(GameNotFound("g1"), CodeGameNotFound))
	assert.Equal(t, KindInsufficientFunds, KindOf(InsufficientFunds("short by %d", 10)))
}

func TestToStatus(t *testing.T) {
	assert.NoError(t, ToStatus(nil))

	st, ok := status.FromError(ToStatus(PlayerNotFound("bob")))
	require.True(t, ok)
	assert.Equal(t, codes.NotFound, st.Code())
	assert.Equal(t, "player not found with username: bob", st.Message())
	require.Len(t, st.Details(), 1)
	info, ok := st.Details()[0].(*errdetails.ErrorInfo)
	require.True(t, ok)
	assert.Equal(t, string(CodePlayerNotFound), info.GetReason())
	assert.Equal(t, Domain, info.GetDomain())
	assert.Equal(t, "bob", info.GetMetadata()["username"])

	st, ok = status.FromError(ToStatus(errors.New("pq: relation games does not exist")))
	require.True(t, ok)
	assert.Equal(t, codes.Internal, st.Code())
	assert.Equal(t, internalMessage, st.Message())

	st, ok = status.FromError(ToStatus(Internal("encode result", errors.New("json: unsupported type chan int"))))
	require.True(t, ok)
	assert.Equal(t, codes.Internal, st.Code())
	assert.Equal(t, internalMessage, st.Message())
	require.Len(t, st.Details(), 1)
	assert.Equal(t, string(CodeInternal), st.Details()[0].(*errdetails.ErrorInfo).GetReason())

	st, ok = status.FromError(ToStatus(AuctionNotFound("g1", "friday")))
	require.True(t, ok)
	assert.Equal(t, codes.NotFound, st.Code())
	assert.Equal(t, "no auction is running in game friday", st.Message())

	existing := status.Error(codes.Unavailable, "draining")
	assert.Equal(t, existing, ToStatus(existing))
}

func TestPayload(t *testing.T) {
	assert.Equal(t, map[string]any{
		"code":    "INSUFFICIENT_FUNDS",
		"kind":    "INSUFFICIENT_FUNDS",
		"message": "bid of 500 exceeds balance",
	}, Payload(InsufficientFunds("bid of %d exceeds balance", 500)))

	assert.Equal(t, map[string]any{
		"code":    "INTERNAL",
		"kind":    "INTERNAL",
		"message": internalMessage,
	}, Payload(errors.New("secret detail")))

	assert.Equal(t, map[string]any{
		"code":    "INTERNAL",
		"kind":    "INTERNAL",
		"message": internalMessage,
	}, Payload(fmt.Errorf("dispatch: %w", Internal("result is not an object", errors.New("secret detail")))))

	assert.Equal(t, map[string]any{
		"code":    "PERMISSION_DENIED",
		"kind":    "INVALID_ACTION",
		"message": "admin credentials required",
	}, Payload(PermissionDenied("admin credentials required")))
}
