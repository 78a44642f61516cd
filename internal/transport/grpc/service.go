package grpc

import (
	"context"

	"cashbook/internal/model"

	"google.golang.org/grpc"
)

const (
	accountServiceName = "cashbook.v1.AccountService"
	eventServiceName   = "cashbook.v1.EventService"
)

type OpenAccountResponse struct {
	AccountID string `json:"account_id"`
}

type CommandResponse struct {
	Status string `json:"status"`
}

type GetBalanceRequest struct {
	AccountID string `json:"account_id"`
}

type EventRequest struct {
	Topic   string `json:"topic"`
	Payload []byte `json:"payload"`
}

type EventResponse struct {
	Success bool `json:"success"`
}

type AccountServiceServer interface {
	OpenAccount(context.Context, *model.OpenAccountRequest) (*OpenAccountResponse, error)
	DepositCash(context.Context, *model.CashRequest) (*CommandResponse, error)
	WithdrawCash(context.Context, *model.CashRequest) (*CommandResponse, error)
	GetBalance(context.Context, *GetBalanceRequest) (*model.Balance, error)
}

// EventServiceServer receives events from remote publishers when the bus
// provider is grpc.
type EventServiceServer interface {
	Publish(context.Context, *EventRequest) (*EventResponse, error)
}

func fullMethod(service, method string) string {
	return "/" + service + "/" + method
}

func unaryHandler[Req, Res any](method string, call func(srv any, ctx context.Context, req *Req) (*Res, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv, ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var AccountServiceDesc = grpc.ServiceDesc{
	ServiceName: accountServiceName,
	HandlerType: (*AccountServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "OpenAccount",
			Handler: unaryHandler(fullMethod(accountServiceName, "OpenAccount"),
				func(srv any, ctx context.Context, req *model.OpenAccountRequest) (*OpenAccountResponse, error) {
					return srv.(AccountServiceServer).OpenAccount(ctx, req)
				}),
		},
		{
			MethodName: "DepositCash",
			Handler: unaryHandler(fullMethod(accountServiceName, "DepositCash"),
				func(srv any, ctx context.Context, req *model.CashRequest) (*CommandResponse, error) {
					return srv.(AccountServiceServer).DepositCash(ctx, req)
				}),
		},
		{
			MethodName: "WithdrawCash",
			Handler: unaryHandler(fullMethod(accountServiceName, "WithdrawCash"),
				func(srv any, ctx context.Context, req *model.CashRequest) (*CommandResponse, error) {
					return srv.(AccountServiceServer).WithdrawCash(ctx, req)
				}),
		},
		{
			MethodName: "GetBalance",
			Handler: unaryHandler(fullMethod(accountServiceName, "GetBalance"),
				func(srv any, ctx context.Context, req *GetBalanceRequest) (*model.Balance, error) {
					return srv.(AccountServiceServer).GetBalance(ctx, req)
				}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cashbook/v1/account",
}

var EventServiceDesc = grpc.ServiceDesc{
	ServiceName: eventServiceName,
	HandlerType: (*EventServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Publish",
			Handler: unaryHandler(fullMethod(eventServiceName, "Publish"),
				func(srv any, ctx context.Context, req *EventRequest) (*EventResponse, error) {
					return srv.(EventServiceServer).Publish(ctx, req)
				}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cashbook/v1/event",
}

// AccountClient calls a remote AccountService.
type AccountClient struct {
	cc grpc.ClientConnInterface
}

func NewAccountClient(cc grpc.ClientConnInterface) *AccountClient {
	return &AccountClient{cc: cc}
}

func (c *AccountClient) OpenAccount(ctx context.Context, in *model.OpenAccountRequest, opts ...grpc.CallOption) (*OpenAccountResponse, error) {
	out := new(OpenAccountResponse)
	if err := invoke(ctx, c.cc, fullMethod(accountServiceName, "OpenAccount"), in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AccountClient) DepositCash(ctx context.Context, in *model.CashRequest, opts ...grpc.CallOption) (*CommandResponse, error) {
	out := new(CommandResponse)
	if err := invoke(ctx, c.cc, fullMethod(accountServiceName, "DepositCash"), in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AccountClient) WithdrawCash(ctx context.Context, in *model.CashRequest, opts ...grpc.CallOption) (*CommandResponse, error) {
	out := new(CommandResponse)
	if err := invoke(ctx, c.cc, fullMethod(accountServiceName, "WithdrawCash"), in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AccountClient) GetBalance(ctx context.Context, in *GetBalanceRequest, opts ...grpc.CallOption) (*model.Balance, error) {
	out := new(model.Balance)
	if err := invoke(ctx, c.cc, fullMethod(accountServiceName, "GetBalance"), in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// EventClient calls a remote EventService.
type EventClient struct {
	cc grpc.ClientConnInterface
}

func NewEventClient(cc grpc.ClientConnInterface) *EventClient {
	return &EventClient{cc: cc}
}

func (c *EventClient) Publish(ctx context.Context, in *EventRequest, opts ...grpc.CallOption) (*EventResponse, error) {
	out := new(EventResponse)
	if err := invoke(ctx, c.cc, fullMethod(eventServiceName, "Publish"), in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func invoke(ctx context.Context, cc grpc.ClientConnInterface, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	return cc.Invoke(ctx, method, in, out, opts...)
}
