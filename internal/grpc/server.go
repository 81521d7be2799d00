package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"betting-service/internal/services"
)

const ServiceName = "betting.BettingService"

// BettingServer is the unary surface exposed to internal callers. Every
// message is a google.protobuf.Struct with the same field names as the
// HTTP API.
type BettingServer interface {
	PlaceBet(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetBet(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SettleMatch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	VoidMatchBets(context.Context, *structpb.Struct) (*structpb.Struct, error)
	VoidBet(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type Server struct {
	Bets       *services.BetService
	Settlement *services.SettlementService
	Log        *zap.Logger
}

var _ BettingServer = (*Server)(nil)

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BettingServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("PlaceBet", BettingServer.PlaceBet),
		unary("GetBet", BettingServer.GetBet),
		unary("SettleMatch", BettingServer.SettleMatch),
		unary("VoidMatchBets", BettingServer.VoidMatchBets),
		unary("VoidBet", BettingServer.VoidBet),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "betting.proto",
}

type method func(BettingServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call method) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(BettingServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(BettingServer), ctx, req.(*structpb.Struct))
			})
		},
	}
}

func RegisterBettingServer(s grpc.ServiceRegistrar, srv BettingServer) {
	s.RegisterService(&serviceDesc, srv)
}

// NewGRPCServer builds a server with the betting service and the standard
// health service registered.
func NewGRPCServer(srv *Server) *grpc.Server {
	gs := grpc.NewServer(grpc.UnaryInterceptor(srv.logUnary))
	RegisterBettingServer(gs, srv)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
	return gs
}

func StartGRPCServer(port string, gs *grpc.Server, log *zap.Logger) error {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	log.Info("gRPC server listening", zap.String("addr", lis.Addr().String()))
	if err := gs.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

func (s *Server) logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	if err != nil {
		s.Log.Warn("grpc call failed",
			zap.String("method", info.FullMethod),
			zap.Duration("took", time.Since(start)),
			zap.Error(err),
		)
	}
	return resp, err
}

type betRequest struct {
	UserId int `json:"user_id"`
	BetId  int `json:"bet_id"`
}

type matchRequest struct {
	MatchId int `json:"match_id"`
}

func (s *Server) PlaceBet(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in services.PlaceBetDTO
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	res, err := s.Bets.PlaceBet(ctx, in)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return encode(res)
}

func (s *Server) GetBet(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in betRequest
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	if in.UserId <= 0 || in.BetId <= 0 {
		return nil, status.Error(codes.InvalidArgument, "user_id and bet_id are required")
	}
	bet, err := s.Bets.GetBetById(ctx, in.UserId, in.BetId)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return encode(bet)
}

func (s *Server) SettleMatch(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in matchRequest
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	if in.MatchId <= 0 {
		return nil, status.Error(codes.InvalidArgument, "match_id is required")
	}
	res, err := s.Settlement.SettleMatch(ctx, in.MatchId)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return encode(res)
}

func (s *Server) VoidMatchBets(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in matchRequest
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	if in.MatchId <= 0 {
		return nil, status.Error(codes.InvalidArgument, "match_id is required")
	}
	res, err := s.Settlement.VoidMatchBets(ctx, in.MatchId)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return encode(res)
}

func (s *Server) VoidBet(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in betRequest
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	if in.BetId <= 0 {
		return nil, status.Error(codes.InvalidArgument, "bet_id is required")
	}
	bet, err := s.Settlement.VoidBet(ctx, in.BetId)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return encode(bet)
}

// toStatus maps a service error onto a gRPC status. Internal errors are
// logged and hidden from the caller.
func (s *Server) toStatus(err error) error {
	var limitErr *services.LimitExceededError
	switch services.Kind(err) {
	case services.KindNotFound:
		return status.Error(codes.NotFound, err.Error())
	case services.KindInvalidState:
		return status.Error(codes.FailedPrecondition, err.Error())
	case services.KindPolicyViolation:
		if errors.As(err, &limitErr) {
			return status.Error(codes.ResourceExhausted, limitErr.Message)
		}
		return status.Error(codes.FailedPrecondition, err.Error())
	case services.KindInvalidInput:
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		s.Log.Error("grpc internal error", zap.Error(err))
		return status.Error(codes.Internal, "internal error")
	}
}

func decode(in *structpb.Struct, dst any) error {
	raw, err := protojson.Marshal(in)
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	return nil
}

func encode(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}
