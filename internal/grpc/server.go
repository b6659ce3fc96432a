package grpc

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mr1hm/go-accident-alerts/internal/ledger"
	"github.com/mr1hm/go-accident-alerts/internal/models"
)

type Ledger interface {
	Ingest(payload models.Alert) (ledger.Receipt, error)
	Snapshot() []models.Alert
}

type Server struct {
	ledger      Ledger
	broadcaster *Broadcaster
	grpcServer  *grpc.Server
}

func NewServer(l Ledger, broadcaster *Broadcaster) *Server {
	s := &Server{
		ledger:      l,
		broadcaster: broadcaster,
		grpcServer:  grpc.NewServer(),
	}
	s.grpcServer.RegisterService(&LedgerService_ServiceDesc, s)
	return s
}

func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	slog.Info("gRPC server listening", "addr", addr)
	return s.Serve(lis)
}

func (s *Server) Serve(lis net.Listener) error {
	return s.grpcServer.Serve(lis)
}

// Stop ends open streams and waits for in-flight calls.
func (s *Server) Stop() {
	s.broadcaster.Close()
	s.grpcServer.GracefulStop()
}

func (s *Server) Ingest(ctx context.Context, req *IngestRequest) (*IngestResponse, error) {
	payload := req.Alert
	if payload == nil {
		payload = models.Alert{}
	}

	receipt, err := s.ledger.Ingest(payload)
	switch {
	case errors.Is(err, ledger.ErrInvalidSeverity):
		return nil, status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ledger.ErrClosed):
		return nil, status.Error(codes.Unavailable, "ledger is shutting down")
	case err != nil:
		return nil, status.Errorf(codes.Internal, "failed to ingest alert: %v", err)
	}

	return &IngestResponse{Message: receipt.Message, Receipt: receipt.Receipt, Seq: receipt.Seq}, nil
}

func (s *Server) Snapshot(ctx context.Context, req *SnapshotRequest) (*SnapshotResponse, error) {
	return &SnapshotResponse{Alerts: s.ledger.Snapshot()}, nil
}

func (s *Server) StreamAlerts(req *StreamAlertsRequest, stream LedgerService_StreamAlertsServer) error {
	minRank := 0
	if req.MinSeverity != "" {
		sev, ok := models.ParseSeverity(req.MinSeverity)
		if !ok {
			return status.Errorf(codes.InvalidArgument, "unknown severity: %s", req.MinSeverity)
		}
		minRank = sev.Rank()
	}

	id, ch := s.broadcaster.Subscribe()
	defer s.broadcaster.Unsubscribe(id)

	slog.Info("client subscribed to alert stream", "subscriber_id", id, "min_severity", req.MinSeverity)

	for {
		select {
		case <-stream.Context().Done():
			slog.Info("client disconnected from alert stream", "subscriber_id", id)
			return nil
		case e, ok := <-ch:
			if !ok {
				return nil
			}

			if minRank > 0 {
				sev, known := models.ParseSeverity(e.Alert.Severity())
				if !known || sev.Rank() < minRank {
					continue
				}
			}

			ev := &AlertEvent{Seq: e.Seq, Receipt: e.Receipt, ReceivedAt: e.ReceivedAt, Alert: e.Alert}
			if err := stream.Send(ev); err != nil {
				slog.Error("failed to send alert to stream", "error", err, "subscriber_id", id)
				return err
			}
		}
	}
}
