package ml

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// scoringServer is the handler type of the Score service
type scoringServer interface {
	Score(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type scorerService struct {
	scorer Scorer
}

func (s *scorerService) Score(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	rows, err := DecodeScoreRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	scores, err := ScoreBatch(ctx, s.scorer, rows)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	values := make([]interface{}, len(scores))
	for i, v := range scores {
		values[i] = v
	}
	resp, err := structpb.NewStruct(map[string]interface{}{"scores": values})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return resp, nil
}

var scorerServiceDesc = grpc.ServiceDesc{
	ServiceName: "raceedge.scoring.v1.Scorer",
	HandlerType: (*scoringServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Score",
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
				in := new(structpb.Struct)
				if err := dec(in); err != nil {
					return nil, err
				}
				if interceptor == nil {
					return srv.(scoringServer).Score(ctx, in)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ScoreMethod}
				handler := func(ctx context.Context, req interface{}) (interface{}, error) {
					return srv.(scoringServer).Score(ctx, req.(*structpb.Struct))
				}
				return interceptor(ctx, in, info, handler)
			},
		},
	},
	Streams: []grpc.StreamDesc{},
}

// RegisterScorerService serves scorer on s under ScoreMethod, so a local
// artifact can back remote GRPCScorer clients
func RegisterScorerService(s grpc.ServiceRegistrar, scorer Scorer) {
	s.RegisterService(&scorerServiceDesc, &scorerService{scorer: scorer})
}
