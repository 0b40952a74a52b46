package ml

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ScoreMethod is the full gRPC method name served by remote scorers
const ScoreMethod = "/raceedge.scoring.v1.Scorer/Score"

// GRPCScorer calls a model server over gRPC. Requests and replies are
// structpb.Struct messages, so no generated stubs are needed.
type GRPCScorer struct {
	name         string
	token        string
	timeout      time.Duration
	featureNames []string
	conn         *grpc.ClientConn
	logger       logrus.FieldLogger
}

// NewGRPCScorer creates a client for address. Connections are established
// lazily on the first call.
func NewGRPCScorer(name, address, token string, timeout time.Duration, featureNames []string, logger logrus.FieldLogger, opts ...grpc.DialOption) (*GRPCScorer, error) {
	connectParams := grpc.ConnectParams{
		Backoff: backoff.Config{
			BaseDelay:  1 * time.Second,
			Multiplier: 1.6,
			Jitter:     0.2,
			MaxDelay:   5 * time.Second,
		},
		MinConnectTimeout: 10 * time.Second,
	}

	keepAlive := keepalive.ClientParameters{
		Time:                30 * time.Second,
		Timeout:             10 * time.Second,
		PermitWithoutStream: true,
	}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithConnectParams(connectParams),
		grpc.WithKeepaliveParams(keepAlive),
	}, opts...)

	conn, err := grpc.NewClient(address, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelServerUnavailable, err)
	}

	logger.WithFields(logrus.Fields{"model": name, "address": address}).Info("Configured gRPC scorer")

	return &GRPCScorer{
		name:         name,
		token:        token,
		timeout:      timeout,
		featureNames: featureNames,
		conn:         conn,
		logger:       logger,
	}, nil
}

// Name returns the model name
func (s *GRPCScorer) Name() string { return s.name }

// Kind returns the scorer kind
func (s *GRPCScorer) Kind() string { return "grpc" }

// Score sends the batch and decodes one score per row
func (s *GRPCScorer) Score(ctx context.Context, rows [][]float64) ([]float64, error) {
	req, err := EncodeScoreRequest(s.name, s.featureNames, rows)
	if err != nil {
		return nil, err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	if s.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+s.token)
	}

	resp := &structpb.Struct{}
	if err := s.conn.Invoke(ctx, ScoreMethod, req, resp); err != nil {
		switch status.Code(err) {
		case codes.Unavailable, codes.DeadlineExceeded:
			return nil, fmt.Errorf("%w: %v", ErrModelServerUnavailable, err)
		default:
			return nil, fmt.Errorf("%w: %v", ErrInvalidScores, err)
		}
	}

	return DecodeScoreResponse(resp)
}

// Close closes the gRPC connection
func (s *GRPCScorer) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// EncodeScoreRequest builds the request message
func EncodeScoreRequest(model string, featureNames []string, rows [][]float64) (*structpb.Struct, error) {
	features := make([]interface{}, len(rows))
	for i, row := range rows {
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		features[i] = values
	}
	names := make([]interface{}, len(featureNames))
	for i, n := range featureNames {
		names[i] = n
	}

	msg, err := structpb.NewStruct(map[string]interface{}{
		"model":         model,
		"feature_names": names,
		"features":      features,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode score request: %w", err)
	}
	return msg, nil
}

// DecodeScoreRequest extracts the feature rows from a request message
func DecodeScoreRequest(msg *structpb.Struct) ([][]float64, error) {
	list := msg.GetFields()["features"].GetListValue()
	if list == nil {
		return nil, fmt.Errorf("request has no features: %w", ErrInvalidScores)
	}

	rows := make([][]float64, len(list.GetValues()))
	for i, rv := range list.GetValues() {
		cols := rv.GetListValue()
		if cols == nil {
			return nil, fmt.Errorf("feature row %d is not a list: %w", i, ErrInvalidScores)
		}
		row := make([]float64, len(cols.GetValues()))
		for j, cv := range cols.GetValues() {
			if _, ok := cv.GetKind().(*structpb.Value_NumberValue); !ok {
				return nil, fmt.Errorf("feature %d of row %d is not a number: %w", j, i, ErrInvalidScores)
			}
			row[j] = cv.GetNumberValue()
		}
		rows[i] = row
	}
	return rows, nil
}

// DecodeScoreResponse extracts scores from a reply message
func DecodeScoreResponse(msg *structpb.Struct) ([]float64, error) {
	list := msg.GetFields()["scores"].GetListValue()
	if list == nil {
		return nil, fmt.Errorf("response has no scores: %w", ErrInvalidScores)
	}

	scores := make([]float64, len(list.GetValues()))
	for i, v := range list.GetValues() {
		if _, ok := v.GetKind().(*structpb.Value_NumberValue); !ok {
			return nil, fmt.Errorf("score %d is not a number: %w", i, ErrInvalidScores)
		}
		scores[i] = v.GetNumberValue()
	}
	return scores, nil
}
