package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"

	"github.com/mr1hm/go-accident-alerts/internal/models"
)

const serviceName = "accidents.v1.LedgerService"

type IngestRequest struct {
	Alert models.Alert `json:"alert"`
}

type IngestResponse struct {
	Message string `json:"message"`
	Receipt string `json:"receipt"`
	Seq     uint64 `json:"seq"`
}

type SnapshotRequest struct{}

type SnapshotResponse struct {
	Alerts []models.Alert `json:"alerts"`
}

type StreamAlertsRequest struct {
	// MinSeverity drops alerts ranked below it. Empty streams everything,
	// including alerts with unrecognised severities.
	MinSeverity string `json:"min_severity,omitempty"`
}

type AlertEvent struct {
	Seq        uint64       `json:"seq"`
	Receipt    string       `json:"receipt"`
	ReceivedAt time.Time    `json:"received_at"`
	Alert      models.Alert `json:"alert"`
}

type LedgerServiceServer interface {
	Ingest(context.Context, *IngestRequest) (*IngestResponse, error)
	Snapshot(context.Context, *SnapshotRequest) (*SnapshotResponse, error)
	StreamAlerts(*StreamAlertsRequest, LedgerService_StreamAlertsServer) error
}

type LedgerService_StreamAlertsServer interface {
	Send(*AlertEvent) error
	grpc.ServerStream
}

type ledgerServiceStreamAlertsServer struct {
	grpc.ServerStream
}

func (x *ledgerServiceStreamAlertsServer) Send(m *AlertEvent) error {
	return x.ServerStream.SendMsg(m)
}

func _LedgerService_Ingest_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(IngestRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LedgerServiceServer).Ingest(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Ingest"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LedgerServiceServer).Ingest(ctx, req.(*IngestRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _LedgerService_Snapshot_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(SnapshotRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LedgerServiceServer).Snapshot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Snapshot"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LedgerServiceServer).Snapshot(ctx, req.(*SnapshotRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _LedgerService_StreamAlerts_Handler(srv any, stream grpc.ServerStream) error {
	m := new(StreamAlertsRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(LedgerServiceServer).StreamAlerts(m, &ledgerServiceStreamAlertsServer{stream})
}

var LedgerService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*LedgerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Ingest", Handler: _LedgerService_Ingest_Handler},
		{MethodName: "Snapshot", Handler: _LedgerService_Snapshot_Handler},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamAlerts",
			Handler:       _LedgerService_StreamAlerts_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "accidents/v1/ledger.proto",
}

// LedgerClient talks to a LedgerService using the JSON codec.
type LedgerClient struct {
	cc grpc.ClientConnInterface
}

func NewLedgerClient(cc grpc.ClientConnInterface) *LedgerClient {
	return &LedgerClient{cc: cc}
}

func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
}

func (c *LedgerClient) Ingest(ctx context.Context, in *IngestRequest, opts ...grpc.CallOption) (*IngestResponse, error) {
	out := new(IngestResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Ingest", in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LedgerClient) Snapshot(ctx context.Context, in *SnapshotRequest, opts ...grpc.CallOption) (*SnapshotResponse, error) {
	out := new(SnapshotResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Snapshot", in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

type AlertStream struct {
	grpc.ClientStream
}

func (x *AlertStream) Recv() (*AlertEvent, error) {
	m := new(AlertEvent)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *LedgerClient) StreamAlerts(ctx context.Context, in *StreamAlertsRequest, opts ...grpc.CallOption) (*AlertStream, error) {
	stream, err := c.cc.NewStream(ctx, &LedgerService_ServiceDesc.Streams[0], "/"+serviceName+"/StreamAlerts", withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &AlertStream{stream}, nil
}
