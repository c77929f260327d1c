package irrigation

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	DeviceServiceName        = "irrigation.DeviceService"
	UpdateProgramFullMethod  = "/irrigation.DeviceService/UpdateProgram"
	DisableProgramFullMethod = "/irrigation.DeviceService/DisableProgram"
	GetRunHistoryFullMethod  = "/irrigation.DeviceService/GetRunHistory"
)

// DeviceServiceClient drives a sprinkler controller that holds one program per zone.
type DeviceServiceClient interface {
	UpdateProgram(ctx context.Context, in *UpdateProgramRequest, opts ...grpc.CallOption) (*CommandResponse, error)
	DisableProgram(ctx context.Context, in *DisableProgramRequest, opts ...grpc.CallOption) (*CommandResponse, error)
	GetRunHistory(ctx context.Context, in *RunHistoryRequest, opts ...grpc.CallOption) (*RunHistoryResponse, error)
}

type deviceServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewDeviceServiceClient(cc grpc.ClientConnInterface) DeviceServiceClient {
	return &deviceServiceClient{cc: cc}
}

func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}

func (c *deviceServiceClient) UpdateProgram(ctx context.Context, in *UpdateProgramRequest, opts ...grpc.CallOption) (*CommandResponse, error) {
	out := new(CommandResponse)
	if err := c.cc.Invoke(ctx, UpdateProgramFullMethod, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *deviceServiceClient) DisableProgram(ctx context.Context, in *DisableProgramRequest, opts ...grpc.CallOption) (*CommandResponse, error) {
	out := new(CommandResponse)
	if err := c.cc.Invoke(ctx, DisableProgramFullMethod, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *deviceServiceClient) GetRunHistory(ctx context.Context, in *RunHistoryRequest, opts ...grpc.CallOption) (*RunHistoryResponse, error) {
	out := new(RunHistoryResponse)
	if err := c.cc.Invoke(ctx, GetRunHistoryFullMethod, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

type DeviceServiceServer interface {
	UpdateProgram(context.Context, *UpdateProgramRequest) (*CommandResponse, error)
	DisableProgram(context.Context, *DisableProgramRequest) (*CommandResponse, error)
	GetRunHistory(context.Context, *RunHistoryRequest) (*RunHistoryResponse, error)
}

// UnimplementedDeviceServiceServer can be embedded to get Unimplemented errors for missing methods.
type UnimplementedDeviceServiceServer struct{}

func (UnimplementedDeviceServiceServer) UpdateProgram(context.Context, *UpdateProgramRequest) (*CommandResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method UpdateProgram not implemented")
}

func (UnimplementedDeviceServiceServer) DisableProgram(context.Context, *DisableProgramRequest) (*CommandResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method DisableProgram not implemented")
}

func (UnimplementedDeviceServiceServer) GetRunHistory(context.Context, *RunHistoryRequest) (*RunHistoryResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetRunHistory not implemented")
}

func RegisterDeviceServiceServer(s grpc.ServiceRegistrar, srv DeviceServiceServer) {
	s.RegisterService(&DeviceServiceDesc, srv)
}

func updateProgramHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(UpdateProgramRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DeviceServiceServer).UpdateProgram(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: UpdateProgramFullMethod}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(DeviceServiceServer).UpdateProgram(ctx, req.(*UpdateProgramRequest))
	})
}

func disableProgramHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(DisableProgramRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DeviceServiceServer).DisableProgram(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: DisableProgramFullMethod}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(DeviceServiceServer).DisableProgram(ctx, req.(*DisableProgramRequest))
	})
}

func getRunHistoryHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(RunHistoryRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DeviceServiceServer).GetRunHistory(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetRunHistoryFullMethod}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(DeviceServiceServer).GetRunHistory(ctx, req.(*RunHistoryRequest))
	})
}

var DeviceServiceDesc = grpc.ServiceDesc{
	ServiceName: DeviceServiceName,
	HandlerType: (*DeviceServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "UpdateProgram", Handler: updateProgramHandler},
		{MethodName: "DisableProgram", Handler: disableProgramHandler},
		{MethodName: "GetRunHistory", Handler: getRunHistoryHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "irrigation/device.proto",
}
