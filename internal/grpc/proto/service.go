package proto

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName полное имя gRPC сервиса
const ServiceName = "shortlink.v1.LinkService"

// Полные имена методов
const (
	MethodCreateLink   = "/" + ServiceName + "/CreateLink"
	MethodResolve      = "/" + ServiceName + "/Resolve"
	MethodGetAnalytics = "/" + ServiceName + "/GetAnalytics"
	MethodUpdateLink   = "/" + ServiceName + "/UpdateLink"
	MethodDeleteLink   = "/" + ServiceName + "/DeleteLink"
	MethodPing         = "/" + ServiceName + "/Ping"
)

// LinkServiceServer представляет интерфейс gRPC сервиса
type LinkServiceServer interface {
	CreateLink(ctx context.Context, req *CreateLinkRequest) (*CreateLinkResponse, error)
	Resolve(ctx context.Context, req *ResolveRequest) (*ResolveResponse, error)
	GetAnalytics(ctx context.Context, req *GetAnalyticsRequest) (*GetAnalyticsResponse, error)
	UpdateLink(ctx context.Context, req *UpdateLinkRequest) (*UpdateLinkResponse, error)
	DeleteLink(ctx context.Context, req *DeleteLinkRequest) (*DeleteLinkResponse, error)
	Ping(ctx context.Context, req *PingRequest) (*PingResponse, error)
}

// UnimplementedLinkServiceServer отвечает Unimplemented на все методы
type UnimplementedLinkServiceServer struct{}

func (UnimplementedLinkServiceServer) CreateLink(context.Context, *CreateLinkRequest) (*CreateLinkResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CreateLink not implemented")
}

func (UnimplementedLinkServiceServer) Resolve(context.Context, *ResolveRequest) (*ResolveResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Resolve not implemented")
}

func (UnimplementedLinkServiceServer) GetAnalytics(context.Context, *GetAnalyticsRequest) (*GetAnalyticsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetAnalytics not implemented")
}

func (UnimplementedLinkServiceServer) UpdateLink(context.Context, *UpdateLinkRequest) (*UpdateLinkResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method UpdateLink not implemented")
}

func (UnimplementedLinkServiceServer) DeleteLink(context.Context, *DeleteLinkRequest) (*DeleteLinkResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method DeleteLink not implemented")
}

func (UnimplementedLinkServiceServer) Ping(context.Context, *PingRequest) (*PingResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Ping not implemented")
}

// unaryHandler строит обработчик метода для ServiceDesc
func unaryHandler[Req, Resp any](method string, call func(LinkServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(LinkServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(LinkServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// LinkServiceDesc описание сервиса для grpc.Server
var LinkServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LinkServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateLink", Handler: unaryHandler(MethodCreateLink, LinkServiceServer.CreateLink)},
		{MethodName: "Resolve", Handler: unaryHandler(MethodResolve, LinkServiceServer.Resolve)},
		{MethodName: "GetAnalytics", Handler: unaryHandler(MethodGetAnalytics, LinkServiceServer.GetAnalytics)},
		{MethodName: "UpdateLink", Handler: unaryHandler(MethodUpdateLink, LinkServiceServer.UpdateLink)},
		{MethodName: "DeleteLink", Handler: unaryHandler(MethodDeleteLink, LinkServiceServer.DeleteLink)},
		{MethodName: "Ping", Handler: unaryHandler(MethodPing, LinkServiceServer.Ping)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "shortlink/v1/link_service",
}

// RegisterLinkServiceServer регистрирует реализацию сервиса в gRPC сервере
func RegisterLinkServiceServer(s grpc.ServiceRegistrar, srv LinkServiceServer) {
	s.RegisterService(&LinkServiceDesc, srv)
}

// LinkServiceClient клиент сервиса поверх JSON-кодека
type LinkServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewLinkServiceClient создаёт клиента для соединения cc
func NewLinkServiceClient(cc grpc.ClientConnInterface) *LinkServiceClient {
	return &LinkServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateLink вызывает LinkService/CreateLink
func (c *LinkServiceClient) CreateLink(ctx context.Context, in *CreateLinkRequest, opts ...grpc.CallOption) (*CreateLinkResponse, error) {
	return invoke[CreateLinkResponse](ctx, c.cc, MethodCreateLink, in, opts)
}

// Resolve вызывает LinkService/Resolve
func (c *LinkServiceClient) Resolve(ctx context.Context, in *ResolveRequest, opts ...grpc.CallOption) (*ResolveResponse, error) {
	return invoke[ResolveResponse](ctx, c.cc, MethodResolve, in, opts)
}

// GetAnalytics вызывает LinkService/GetAnalytics
func (c *LinkServiceClient) GetAnalytics(ctx context.Context, in *GetAnalyticsRequest, opts ...grpc.CallOption) (*GetAnalyticsResponse, error) {
	return invoke[GetAnalyticsResponse](ctx, c.cc, MethodGetAnalytics, in, opts)
}

// UpdateLink вызывает LinkService/UpdateLink
func (c *LinkServiceClient) UpdateLink(ctx context.Context, in *UpdateLinkRequest, opts ...grpc.CallOption) (*UpdateLinkResponse, error) {
	return invoke[UpdateLinkResponse](ctx, c.cc, MethodUpdateLink, in, opts)
}

// DeleteLink вызывает LinkService/DeleteLink
func (c *LinkServiceClient) DeleteLink(ctx context.Context, in *DeleteLinkRequest, opts ...grpc.CallOption) (*DeleteLinkResponse, error) {
	return invoke[DeleteLinkResponse](ctx, c.cc, MethodDeleteLink, in, opts)
}

// Ping вызывает LinkService/Ping
func (c *LinkServiceClient) Ping(ctx context.Context, in *PingRequest, opts ...grpc.CallOption) (*PingResponse, error) {
	return invoke[PingResponse](ctx, c.cc, MethodPing, in, opts)
}
