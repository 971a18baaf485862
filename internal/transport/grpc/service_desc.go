package grpc

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "slotline.v1.SchedulingService"

// SchedulingServiceServer is the server API of slotline.v1.SchedulingService.
type SchedulingServiceServer interface {
	GetAvailableSlots(context.Context, *GetAvailableSlotsRequest) (*GetAvailableSlotsResponse, error)
	BookAppointment(context.Context, *BookAppointmentRequest) (*AppointmentResponse, error)
	RescheduleAppointment(context.Context, *RescheduleAppointmentRequest) (*AppointmentResponse, error)
	CancelAppointment(context.Context, *CancelAppointmentRequest) (*AppointmentResponse, error)
	CompleteAppointment(context.Context, *AppointmentRequest) (*AppointmentResponse, error)
	MarkNoShow(context.Context, *AppointmentRequest) (*AppointmentResponse, error)
	GetAppointment(context.Context, *AppointmentRequest) (*AppointmentResponse, error)
	ListAppointments(context.Context, *ListAppointmentsRequest) (*ListAppointmentsResponse, error)
	ListHistory(context.Context, *AppointmentRequest) (*ListHistoryResponse, error)
	GetAvailabilityRules(context.Context, *ProviderRequest) (*RulesResponse, error)
	SetAvailabilityRules(context.Context, *SetAvailabilityRulesRequest) (*RulesResponse, error)
	SetTimezone(context.Context, *SetTimezoneRequest) (*CalendarResponse, error)
	CreateTimeBlock(context.Context, *CreateTimeBlockRequest) (*TimeBlockResponse, error)
	ListTimeBlocks(context.Context, *ListTimeBlocksRequest) (*ListTimeBlocksResponse, error)
	DeleteTimeBlock(context.Context, *DeleteTimeBlockRequest) (*DeleteTimeBlockResponse, error)
}

var SchedulingServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SchedulingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetAvailableSlots", SchedulingServiceServer.GetAvailableSlots),
		unary("BookAppointment", SchedulingServiceServer.BookAppointment),
		unary("RescheduleAppointment", SchedulingServiceServer.RescheduleAppointment),
		unary("CancelAppointment", SchedulingServiceServer.CancelAppointment),
		unary("CompleteAppointment", SchedulingServiceServer.CompleteAppointment),
		unary("MarkNoShow", SchedulingServiceServer.MarkNoShow),
		unary("GetAppointment", SchedulingServiceServer.GetAppointment),
		unary("ListAppointments", SchedulingServiceServer.ListAppointments),
		unary("ListHistory", SchedulingServiceServer.ListHistory),
		unary("GetAvailabilityRules", SchedulingServiceServer.GetAvailabilityRules),
		unary("SetAvailabilityRules", SchedulingServiceServer.SetAvailabilityRules),
		unary("SetTimezone", SchedulingServiceServer.SetTimezone),
		unary("CreateTimeBlock", SchedulingServiceServer.CreateTimeBlock),
		unary("ListTimeBlocks", SchedulingServiceServer.ListTimeBlocks),
		unary("DeleteTimeBlock", SchedulingServiceServer.DeleteTimeBlock),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "slotline/v1/scheduling.proto",
}

func RegisterSchedulingServiceServer(s grpc.ServiceRegistrar, srv SchedulingServiceServer) {
	s.RegisterService(&SchedulingServiceDesc, srv)
}

func unary[Req, Resp any](name string, call func(SchedulingServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(SchedulingServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(SchedulingServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// SchedulingClient calls slotline.v1.SchedulingService with the JSON codec.
type SchedulingClient struct {
	cc grpc.ClientConnInterface
}

func NewSchedulingClient(cc grpc.ClientConnInterface) *SchedulingClient {
	return &SchedulingClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, c *SchedulingClient, method string, in any, opts ...grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SchedulingClient) GetAvailableSlots(ctx context.Context, in *GetAvailableSlotsRequest, opts ...grpc.CallOption) (*GetAvailableSlotsResponse, error) {
	return invoke[GetAvailableSlotsResponse](ctx, c, "GetAvailableSlots", in, opts...)
}

func (c *SchedulingClient) BookAppointment(ctx context.Context, in *BookAppointmentRequest, opts ...grpc.CallOption) (*AppointmentResponse, error) {
	return invoke[AppointmentResponse](ctx, c, "BookAppointment", in, opts...)
}

func (c *SchedulingClient) RescheduleAppointment(ctx context.Context, in *RescheduleAppointmentRequest, opts ...grpc.CallOption) (*AppointmentResponse, error) {
	return invoke[AppointmentResponse](ctx, c, "RescheduleAppointment", in, opts...)
}

func (c *SchedulingClient) CancelAppointment(ctx context.Context, in *CancelAppointmentRequest, opts ...grpc.CallOption) (*AppointmentResponse, error) {
	return invoke[AppointmentResponse](ctx, c, "CancelAppointment", in, opts...)
}

func (c *SchedulingClient) CompleteAppointment(ctx context.Context, in *AppointmentRequest, opts ...grpc.CallOption) (*AppointmentResponse, error) {
	return invoke[AppointmentResponse](ctx, c, "CompleteAppointment", in, opts...)
}

func (c *SchedulingClient) MarkNoShow(ctx context.Context, in *AppointmentRequest, opts ...grpc.CallOption) (*AppointmentResponse, error) {
	return invoke[AppointmentResponse](ctx, c, "MarkNoShow", in, opts...)
}

func (c *SchedulingClient) GetAppointment(ctx context.Context, in *AppointmentRequest, opts ...grpc.CallOption) (*AppointmentResponse, error) {
	return invoke[AppointmentResponse](ctx, c, "GetAppointment", in, opts...)
}

func (c *SchedulingClient) ListAppointments(ctx context.Context, in *ListAppointmentsRequest, opts ...grpc.CallOption) (*ListAppointmentsResponse, error) {
	return invoke[ListAppointmentsResponse](ctx, c, "ListAppointments", in, opts...)
}

func (c *SchedulingClient) ListHistory(ctx context.Context, in *AppointmentRequest, opts ...grpc.CallOption) (*ListHistoryResponse, error) {
	return invoke[ListHistoryResponse](ctx, c, "ListHistory", in, opts...)
}

func (c *SchedulingClient) GetAvailabilityRules(ctx context.Context, in *ProviderRequest, opts ...grpc.CallOption) (*RulesResponse, error) {
	return invoke[RulesResponse](ctx, c, "GetAvailabilityRules", in, opts...)
}

func (c *SchedulingClient) SetAvailabilityRules(ctx context.Context, in *SetAvailabilityRulesRequest, opts ...grpc.CallOption) (*RulesResponse, error) {
	return invoke[RulesResponse](ctx, c, "SetAvailabilityRules", in, opts...)
}

func (c *SchedulingClient) SetTimezone(ctx context.Context, in *SetTimezoneRequest, opts ...grpc.CallOption) (*CalendarResponse, error) {
	return invoke[CalendarResponse](ctx, c, "SetTimezone", in, opts...)
}

func (c *SchedulingClient) CreateTimeBlock(ctx context.Context, in *CreateTimeBlockRequest, opts ...grpc.CallOption) (*TimeBlockResponse, error) {
	return invoke[TimeBlockResponse](ctx, c, "CreateTimeBlock", in, opts...)
}

func (c *SchedulingClient) ListTimeBlocks(ctx context.Context, in *ListTimeBlocksRequest, opts ...grpc.CallOption) (*ListTimeBlocksResponse, error) {
	return invoke[ListTimeBlocksResponse](ctx, c, "ListTimeBlocks", in, opts...)
}

func (c *SchedulingClient) DeleteTimeBlock(ctx context.Context, in *DeleteTimeBlockRequest, opts ...grpc.CallOption) (*DeleteTimeBlockResponse, error) {
	return invoke[DeleteTimeBlockResponse](ctx, c, "DeleteTimeBlock", in, opts...)
}
