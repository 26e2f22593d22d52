package server

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

const adminPassword = "hunter2"

func startGRPC(t *testing.T, f *fixture) *GameServiceClient {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.MinCost)
	require.NoError(t, err)

	logger := zaptest.NewLogger(t)
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.UnaryInterceptor(ChainUnaryInterceptors(
		RecoveryInterceptor(logger),
		LoggingInterceptor(logger),
		AdminInterceptor(NewAdminAuthenticator(string(hash)), logger),
	)))
	RegisterGameServiceServer(srv, NewGameServer(f.dispatcher, logger))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return NewGameServiceClient(conn)
}

func errorReason(t *testing.T, err error) string {
	t.Helper()
	st, ok := status.FromError(err)
	require.True(t, ok)
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok {
			return info.GetReason()
		}
	}
	return ""
}

func TestGRPCExecute(t *testing.T) {
	f := newFixture(t)
	client := startGRPC(t, f)
	ctx := context.Background()

	created, err := client.Execute(ctx, "createGame", map[string]any{"username": "alice", "gameName": "g1", "maxPlayers": 2})
	require.NoError(t, err)
	gameID, ok := created["gameId"].(string)
	require.True(t, ok)
	assert.NotEmpty(t, gameID)
	assert.Equal(t, "g1", created["gameName"])
	assert.Equal(t, false, created["started"])
	assert.Equal(t, float64(2), created["maxPlayers"])
	players := created["players"].([]any)
	require.Len(t, players, 1)
	alice := players[0].(map[string]any)
	assert.Equal(t, "alice", alice["username"])
	assert.Equal(t, float64(100000), alice["money"])
	assert.Equal(t, alice["id"], created["currentPlayerId"])

	joined, err := client.Execute(ctx, "joinGame", map[string]any{"gameId": gameID, "username": "bob"})
	require.NoError(t, err)
	assert.Equal(t, gameID, joined["gameId"])
	assert.Equal(t, true, joined["started"])
	assert.Len(t, joined["players"], 2)

	said, err := client.Execute(ctx, "sendMessage", map[string]any{"gameId": gameID, "username": "bob", "message": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "CHAT", said["type"])
	assert.Equal(t, "bob", said["sender"])

	casino, err := client.Execute(ctx, "playCasino", map[string]any{
		"gameId":   gameID,
		"username": "bob",
		"bet":      100,
		"numbers":  []any{1, 2, 3, 4},
	})
	require.NoError(t, err)
	assert.Contains(t, []any{true, false}, casino["isWinner"])
}

func TestGRPCErrorMapping(t *testing.T) {
	f := newFixture(t)
	client := startGRPC(t, f)
	ctx := context.Background()

	_, err := client.Execute(ctx, "getGame", map[string]any{"gameId": "missing"})
	assert.Equal(t, codes.NotFound, status.Code(err))
	assert.Equal(t, "GAME_NOT_FOUND", errorReason(t, err))

	_, err = client.Execute(ctx, "createGame", nil)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Equal(t, "INVALID_ARGUMENT", errorReason(t, err))

	_, err = client.Execute(ctx, "", nil)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	gameID := f.startGame(t)
	_, err = client.Execute(ctx, "payMoney", map[string]any{"gameId": gameID, "username": "bob", "amount": 500000})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
	assert.Equal(t, "INSUFFICIENT_FUNDS", errorReason(t, err))
}

func TestGRPCAdminHeader(t *testing.T) {
	f := newFixture(t)
	client := startGRPC(t, f)
	gameID := f.startGame(t)
	args := map[string]any{"gameId": gameID}

	_, err := client.Execute(context.Background(), "deleteGame", args)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
	assert.Equal(t, "PERMISSION_DENIED", errorReason(t, err))

	wrong := metadata.AppendToOutgoingContext(context.Background(), AdminPasswordHeader, "guess")
	_, err = client.Execute(wrong, "deleteGame", args)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	admin := metadata.AppendToOutgoingContext(context.Background(), AdminPasswordHeader, adminPassword)
	out, err := client.Execute(admin, "deleteGame", args)
	require.NoError(t, err)
	assert.Equal(t, true, out["deleted"])
}

func TestAdminAuthenticatorDisabled(t *testing.T) {
	auth := NewAdminAuthenticator("")
	assert.False(t, auth.Enabled())
	assert.False(t, auth.Verify("anything"))
}

func TestRecoveryInterceptor(t *testing.T) {
	interceptor := RecoveryInterceptor(zaptest.NewLogger(t))
	info := &grpc.UnaryServerInfo{FullMethod: ExecuteMethod}

	resp, err := interceptor(context.Background(), nil, info, func(context.Context, any) (any, error) {
		panic("boom")
	})
	assert.Nil(t, resp)
	assert.Equal(t, codes.Internal, status.Code(err))
	assert.NotContains(t, err.Error(), "boom")
}

func TestChainUnaryInterceptorsOrder(t *testing.T) {
	var order []string
	record := func(name string) grpc.UnaryServerInterceptor {
		return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
			order = append(order, name+">")
			resp, err := handler(ctx, req)
			order = append(order, "<"+name)
			return resp, err
		}
	}

	chain := ChainUnaryInterceptors(record("a"), record("b"))
	resp, err := chain(context.Background(), "req", &grpc.UnaryServerInfo{}, func(_ context.Context, req any) (any, error) {
		order = append(order, "handler")
		return req, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "req", resp)
	assert.Equal(t, []string{"a>", "b>", "handler", "<b", "<a"}, order)
}
