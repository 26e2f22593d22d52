package server

import (
	"context"
	"net"
	"strings"

	"github.com/boardtycoon/tycoon-server-go/internal/apperrors"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/peer"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "tycoon.v1.GameService"
	// ExecuteMethod is the full method name of GameService.Execute.
	ExecuteMethod = "/" + ServiceName + "/Execute"
)

// GameServiceServer is the server API for tycoon.v1.GameService.
//
// Execute takes {"command": name, "args": {...}} and returns the command
// result as a struct.
type GameServiceServer interface {
	Execute(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterGameServiceServer registers srv on s.
func RegisterGameServiceServer(s grpc.ServiceRegistrar, srv GameServiceServer) {
	s.RegisterService(&gameServiceDesc, srv)
}

var gameServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*GameServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Execute",
			Handler:    executeHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tycoon/v1/game.proto",
}

func executeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(GameServiceServer).Execute(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ExecuteMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(GameServiceServer).Execute(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// GameServiceClient is the client API for tycoon.v1.GameService.
type GameServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewGameServiceClient wraps cc.
func NewGameServiceClient(cc grpc.ClientConnInterface) *GameServiceClient {
	return &GameServiceClient{cc: cc}
}

// Execute runs command with args on the server.
func (c *GameServiceClient) Execute(ctx context.Context, command string, args map[string]any, opts ...grpc.CallOption) (map[string]any, error) {
	in, err := structpb.NewStruct(map[string]any{
		"command": command,
		"args":    args,
	})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ExecuteMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

// gameServer implements GameServiceServer on top of the dispatcher.
type gameServer struct {
	dispatcher *Dispatcher
	logger     *zap.Logger
}

// NewGameServer creates the gRPC service for dispatcher.
func NewGameServer(dispatcher *Dispatcher, logger *zap.Logger) GameServiceServer {
	return &gameServer{dispatcher: dispatcher, logger: logger}
}

// Execute decodes the command envelope and runs it.
func (s *gameServer) Execute(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.AsMap()

	name, _ := fields["command"].(string)
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.ToStatus(apperrors.InvalidArgument("command is required"))
	}

	var args map[string]any
	if raw, ok := fields["args"]; ok && raw != nil {
		args, ok = raw.(map[string]any)
		if !ok {
			return nil, apperrors.ToStatus(apperrors.InvalidArgument("args must be an object"))
		}
	}

	result, err := s.dispatcher.HandleCommand(ctx, name, args)
	if err != nil {
		return nil, apperrors.ToStatus(err)
	}

	out, err := structpb.NewStruct(result)
	if err != nil {
		s.logger.Error("failed to encode command result",
			zap.String("command", name),
			zap.String("peer", extractHostFromContext(ctx)),
			zap.Error(err),
		)
		return nil, apperrors.ToStatus(err)
	}
	return out, nil
}

// extractHostFromContext returns the caller's host, or "unknown".
func extractHostFromContext(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != net.Addr(nil) {
		if host, _, err := net.SplitHostPort(p.Addr.String()); err == nil {
			return host
		}
		return p.Addr.String()
	}
	return "unknown"
}
