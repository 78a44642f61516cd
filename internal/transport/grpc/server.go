package grpc

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"

	"cashbook/internal/model"
	"cashbook/internal/repository"
	"cashbook/internal/service"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	_ AccountServiceServer = (*Server)(nil)
	_ EventServiceServer   = (*Server)(nil)
)

type Server struct {
	svc  service.AccountService
	srv  *grpc.Server
	addr string
}

func NewServer(addr string, svc service.AccountService) *Server {
	s := &Server{svc: svc, addr: addr, srv: grpc.NewServer()}
	s.srv.RegisterService(&AccountServiceDesc, s)
	s.srv.RegisterService(&EventServiceDesc, s)
	return s
}

func (s *Server) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(lis)
}

func (s *Server) Serve(lis net.Listener) error {
	slog.Info("gRPC server is running", "addr", lis.Addr().String())
	return s.srv.Serve(lis)
}

func (s *Server) Stop(ctx context.Context) error {
	s.srv.GracefulStop()
	return nil
}

func (s *Server) OpenAccount(ctx context.Context, req *model.OpenAccountRequest) (*OpenAccountResponse, error) {
	id, err := s.svc.OpenAccount(ctx, *req)
	if err != nil {
		return nil, toStatus(err)
	}
	return &OpenAccountResponse{AccountID: id}, nil
}

func (s *Server) DepositCash(ctx context.Context, req *model.CashRequest) (*CommandResponse, error) {
	if err := s.svc.DepositCash(ctx, *req); err != nil {
		return nil, toStatus(err)
	}
	return &CommandResponse{Status: "SUCCESS"}, nil
}

func (s *Server) WithdrawCash(ctx context.Context, req *model.CashRequest) (*CommandResponse, error) {
	if err := s.svc.WithdrawCash(ctx, *req); err != nil {
		return nil, toStatus(err)
	}
	return &CommandResponse{Status: "SUCCESS"}, nil
}

func (s *Server) GetBalance(ctx context.Context, req *GetBalanceRequest) (*model.Balance, error) {
	bal, err := s.svc.GetBalance(ctx, req.AccountID)
	if err != nil {
		return nil, toStatus(err)
	}
	return bal, nil
}

// Publish feeds events from a remote GrpcBus into the balance projection.
func (s *Server) Publish(ctx context.Context, req *EventRequest) (*EventResponse, error) {
	if req.Topic != repository.EventsTopic {
		return nil, status.Errorf(codes.InvalidArgument, "unknown topic %q", req.Topic)
	}

	var event model.EventMessage
	if err := json.Unmarshal(req.Payload, &event); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid event payload: %v", err)
	}
	if err := s.svc.ProjectEvent(ctx, event); err != nil {
		slog.Error("grpc: failed to project event",
			"account_id", event.AccountID,
			"version", event.Version,
			"error", err,
		)
		return nil, toStatus(err)
	}
	return &EventResponse{Success: true}, nil
}

func toStatus(err error) error {
	var code codes.Code
	switch service.ErrorCode(err) {
	case service.CodeInvalidArgument:
		code = codes.InvalidArgument
	case service.CodeOutOfRange:
		code = codes.OutOfRange
	case service.CodeInvalidOperation:
		code = codes.FailedPrecondition
	case service.CodeNotFound:
		code = codes.NotFound
	case service.CodeAlreadyExists:
		code = codes.AlreadyExists
	case service.CodeConflict:
		code = codes.Aborted
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}
