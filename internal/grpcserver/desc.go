package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "geteam.recruit.v1.RecruitService"

// RecruitServiceServer is the method set served under ServiceName. Every
// request and response is a google.protobuf.Struct holding the JSON shape of
// the corresponding HTTP body.
type RecruitServiceServer interface {
	ListBoards(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetBoard(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateBoard(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateBoard(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteBoard(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateTeam(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateApplication(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AcceptApplication(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteApplication(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListApplications(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListBoardApplications(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetStats(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type rpc func(RecruitServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

// unary adapts an rpc to grpc.MethodDesc, running the server's interceptor
// chain the same way generated code does.
func unary(name string, call rpc) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(RecruitServiceServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*structpb.Struct))
			})
		},
	}
}

// ServiceDesc describes RecruitService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RecruitServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("ListBoards", RecruitServiceServer.ListBoards),
		unary("GetBoard", RecruitServiceServer.GetBoard),
		unary("CreateBoard", RecruitServiceServer.CreateBoard),
		unary("UpdateBoard", RecruitServiceServer.UpdateBoard),
		unary("DeleteBoard", RecruitServiceServer.DeleteBoard),
		unary("CreateTeam", RecruitServiceServer.CreateTeam),
		unary("CreateApplication", RecruitServiceServer.CreateApplication),
		unary("AcceptApplication", RecruitServiceServer.AcceptApplication),
		unary("DeleteApplication", RecruitServiceServer.DeleteApplication),
		unary("ListApplications", RecruitServiceServer.ListApplications),
		unary("ListBoardApplications", RecruitServiceServer.ListBoardApplications),
		unary("GetStats", RecruitServiceServer.GetStats),
	},
	Metadata: "geteam/recruit/v1/recruit.proto",
}

// Register mounts srv and the standard health service on g and marks
// RecruitService as serving.
func Register(g *grpc.Server, srv RecruitServiceServer) *health.Server {
	g.RegisterService(&ServiceDesc, srv)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(g, hs)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return hs
}
