package grpc_control

import (
	"context"
	"fmt"

	"ticker-monitor/src/interfaces"
	"ticker-monitor/src/logger"
	"ticker-monitor/src/models"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Full method names of the control service.
const (
	ControlServiceName     = "ticker.Control"
	ControlReconnectMethod = "/ticker.Control/Reconnect"
	ControlCloseMethod     = "/ticker.Control/Close"
	ControlRefreshMethod   = "/ticker.Control/Refresh"
	ControlGetStatusMethod = "/ticker.Control/GetStatus"
	ControlGetAlertsMethod = "/ticker.Control/GetAlerts"
)

// -----------------------------------------------------------------------------

// ControlServer is the server API of ticker.Control. Requests are empty and responses
// are google.protobuf.Struct, so the service needs no generated code.
type ControlServer interface {
	Reconnect(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Close(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Refresh(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetAlerts(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// -----------------------------------------------------------------------------
// ControlService Implementation
// -----------------------------------------------------------------------------

type ControlServiceImpl struct {
	Name       string
	controller interfaces.IFeedController
	logger     *logger.Logger
}

// -----------------------------------------------------------------------------

// NewControlService creates a new ControlServiceImpl instance
func NewControlService(controller interfaces.IFeedController, logger *logger.Logger) *ControlServiceImpl {
	return &ControlServiceImpl{
		Name:       "GRPCControlService",
		controller: controller,
		logger:     logger,
	}
}

// -----------------------------------------------------------------------------

// Reconnect restarts the upstream connection
func (s *ControlServiceImpl) Reconnect(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	s.logger.Info("%s : received Reconnect request", s.Name)
	s.controller.Reconnect()
	return controlResponse(true, "reconnect requested")
}

// -----------------------------------------------------------------------------

// Close stops the feed without auto-reconnect
func (s *ControlServiceImpl) Close(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	s.logger.Info("%s : received Close request", s.Name)
	s.controller.Close()
	return controlResponse(true, "feed closed")
}

// -----------------------------------------------------------------------------

// Refresh forwards the manual refresh signal
func (s *ControlServiceImpl) Refresh(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	s.controller.Refresh()
	return controlResponse(true, "refresh accepted")
}

// -----------------------------------------------------------------------------

// GetStatus returns the data source status
func (s *ControlServiceImpl) GetStatus(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return StatusStruct(s.controller.GetStatus())
}

// -----------------------------------------------------------------------------

// GetAlerts returns the current alert feed, newest first
func (s *ControlServiceImpl) GetAlerts(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	entries := s.controller.Alerts()

	list := make([]any, 0, len(entries))
	for _, e := range entries {
		list = append(list, map[string]any{
			"text":      e.Text,
			"type":      string(e.Type),
			"timestamp": e.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		})
	}
	return structpb.NewStruct(map[string]any{"entries": list})
}

// -----------------------------------------------------------------------------
// Conversion helpers
// -----------------------------------------------------------------------------

// StatusStruct converts a data source status into a protobuf Struct.
func StatusStruct(status *models.MDataSourceStatus) (*structpb.Struct, error) {
	symbols := make([]any, 0, len(status.Symbols))
	for _, s := range status.Symbols {
		symbols = append(symbols, s)
	}

	st, err := structpb.NewStruct(map[string]any{
		"source_name":    status.SourceName,
		"running":        status.Running,
		"type":           status.Type,
		"transport_type": status.TransportType,
		"endpoint":       status.Endpoint,
		"symbols":        symbols,
		"state":          string(status.State),
		"failures":       status.Failures,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode status: %w", err)
	}
	return st, nil
}

// -----------------------------------------------------------------------------

func controlResponse(success bool, message string) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"success": success,
		"message": message,
	})
}

// -----------------------------------------------------------------------------
// Service descriptor
// -----------------------------------------------------------------------------

// RegisterControlServiceServer registers srv on s under ticker.Control.
func RegisterControlServiceServer(s grpc.ServiceRegistrar, srv ControlServer) {
	s.RegisterService(&ControlService_ServiceDesc, srv)
}

// ControlService_ServiceDesc describes ticker.Control for grpc.Server.
var ControlService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ControlServiceName,
	HandlerType: (*ControlServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Reconnect", Handler: unaryHandler(ControlReconnectMethod, ControlServer.Reconnect)},
		{MethodName: "Close", Handler: unaryHandler(ControlCloseMethod, ControlServer.Close)},
		{MethodName: "Refresh", Handler: unaryHandler(ControlRefreshMethod, ControlServer.Refresh)},
		{MethodName: "GetStatus", Handler: unaryHandler(ControlGetStatusMethod, ControlServer.GetStatus)},
		{MethodName: "GetAlerts", Handler: unaryHandler(ControlGetAlertsMethod, ControlServer.GetAlerts)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ticker/control",
}

// -----------------------------------------------------------------------------

type controlCall func(ControlServer, context.Context, *emptypb.Empty) (*structpb.Struct, error)

// unaryHandler adapts a ControlServer method to the grpc method handler signature.
func unaryHandler(fullMethod string, call controlCall) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(emptypb.Empty)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ControlServer), ctx, in)
		}

		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ControlServer), ctx, req.(*emptypb.Empty))
		}
		return interceptor(ctx, in, info, handler)
	}
}
