package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "triplelock.v1.ExpenditureService"

// ExpenditureServiceServer is the server API for ExpenditureService. Every
// request and response is a google.protobuf.Struct.
type ExpenditureServiceServer interface {
	CreateProject(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListProjects(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateExpenditure(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AssignVendor(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SubmitVendorProof(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RetryVerification(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SubmitBeneficiaryVote(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ReleaseFunds(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RejectExpenditure(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetExpenditure(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListExpenditures(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListEvents(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExportLedger(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(ExpenditureServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func method(name string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ExpenditureServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + ServiceName + "/" + name,
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(ExpenditureServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc is the grpc.ServiceDesc for ExpenditureService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ExpenditureServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		method("CreateProject", ExpenditureServiceServer.CreateProject),
		method("ListProjects", ExpenditureServiceServer.ListProjects),
		method("CreateExpenditure", ExpenditureServiceServer.CreateExpenditure),
		method("AssignVendor", ExpenditureServiceServer.AssignVendor),
		method("SubmitVendorProof", ExpenditureServiceServer.SubmitVendorProof),
		method("RetryVerification", ExpenditureServiceServer.RetryVerification),
		method("SubmitBeneficiaryVote", ExpenditureServiceServer.SubmitBeneficiaryVote),
		method("ReleaseFunds", ExpenditureServiceServer.ReleaseFunds),
		method("RejectExpenditure", ExpenditureServiceServer.RejectExpenditure),
		method("GetExpenditure", ExpenditureServiceServer.GetExpenditure),
		method("ListExpenditures", ExpenditureServiceServer.ListExpenditures),
		method("ListEvents", ExpenditureServiceServer.ListEvents),
		method("ExportLedger", ExpenditureServiceServer.ExportLedger),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "google/protobuf/struct.proto",
}

// RegisterExpenditureServiceServer registers srv on s.
func RegisterExpenditureServiceServer(s grpc.ServiceRegistrar, srv ExpenditureServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// FullMethod returns the full gRPC method path for name.
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}
