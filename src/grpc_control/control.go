package grpc_control

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "levelobserver.Control"

// Method names of the control service.
const (
	MethodListSources   = "ListSources"
	MethodUpdateSymbols = "UpdateSymbols"
	MethodStartSource   = "StartSource"
	MethodStopSource    = "StopSource"
	MethodDetectLevels  = "DetectLevels"
	MethodGetStatus     = "GetStatus"
)

// ControlServer is the control plane. Requests and responses are
// google.protobuf.Struct so no generated code is needed.
type ControlServer interface {
	ListSources(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateSymbols(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StartSource(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StopSource(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DetectLevels(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// -----------------------------------------------------------------------------

type controlMethod func(ControlServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(name string, call controlMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ControlServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + ServiceName + "/" + name,
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(ControlServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ControlServiceDesc describes levelobserver.Control for grpc.Server.
var ControlServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ControlServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler(MethodListSources, ControlServer.ListSources),
		unaryHandler(MethodUpdateSymbols, ControlServer.UpdateSymbols),
		unaryHandler(MethodStartSource, ControlServer.StartSource),
		unaryHandler(MethodStopSource, ControlServer.StopSource),
		unaryHandler(MethodDetectLevels, ControlServer.DetectLevels),
		unaryHandler(MethodGetStatus, ControlServer.GetStatus),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "level_observer_control",
}

// RegisterControlServer attaches srv to s.
func RegisterControlServer(s grpc.ServiceRegistrar, srv ControlServer) {
	s.RegisterService(&ControlServiceDesc, srv)
}

// -----------------------------------------------------------------------------
// Client
// -----------------------------------------------------------------------------

// ControlClient calls levelobserver.Control over an existing connection.
type ControlClient struct {
	cc grpc.ClientConnInterface
}

func NewControlClient(cc grpc.ClientConnInterface) *ControlClient {
	return &ControlClient{cc: cc}
}

// Call invokes method with a request built from fields.
func (c *ControlClient) Call(ctx context.Context, method string, fields map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
