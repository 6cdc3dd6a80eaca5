package grpcclient

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/example/photo-check/internal/classifier"
	"github.com/example/photo-check/internal/logging"
)

// ClassifyMethod is the unary method the classifier sidecar serves. The
// request is a BytesValue holding the image and the reply is a Value holding
// the same JSON shape the HTTP endpoint returns.
const ClassifyMethod = "/photocheck.v1.Classifier/Classify"

// DialClassifier returns a ready-to-use gRPC classifier client.
func DialClassifier(ctx context.Context, addr, token string, timeout time.Duration, logger *zap.Logger, opts ...grpc.DialOption) (classifier.Client, *grpc.ClientConn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	}, opts...)

	conn, err := grpc.DialContext(dialCtx, addr, dialOpts...)
	if err != nil {
		wrapped := logging.NewOperationError("grpcclient.dial_classifier", "", err)
		logger.Error("failed to dial classifier", zap.Error(wrapped), zap.String("addr", addr))
		return nil, nil, wrapped
	}
	return &grpcClassifier{conn: conn, token: token, timeout: timeout, logger: logger.Named("classifier_grpc")}, conn, nil
}

type grpcClassifier struct {
	conn    grpc.ClientConnInterface
	token   string
	timeout time.Duration
	logger  *zap.Logger
}

func (g *grpcClassifier) Classify(ctx context.Context, image []byte) (classifier.Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+g.token)

	var reply structpb.Value
	start := time.Now()
	err := g.conn.Invoke(ctx, ClassifyMethod, wrapperspb.Bytes(image), &reply)
	elapsed := time.Since(start)
	if err != nil {
		st, ok := status.FromError(err)
		if !ok || isTransportCode(st.Code()) {
			wrapped := logging.NewOperationError("grpcclient.classify", "", err)
			g.logger.Error("classifier call failed", zap.Error(wrapped), zap.Duration("elapsed", elapsed))
			return nil, wrapped
		}
		g.logger.Warn("classifier returned status", zap.String("code", st.Code().String()), zap.String("message", st.Message()))
		return failureFromStatus(st), nil
	}

	g.logger.Info("classifier responded", zap.Duration("elapsed", elapsed))
	return classifier.InterpretPayload(reply.AsInterface(), http.StatusOK, elapsed), nil
}

func isTransportCode(code codes.Code) bool {
	switch code {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
		return true
	}
	return false
}

func failureFromStatus(st *status.Status) *classifier.Failure {
	switch st.Code() {
	case codes.Unauthenticated:
		return classifier.NewFailure(classifier.KindUnauthorized, http.StatusUnauthorized, "")
	case codes.InvalidArgument:
		return classifier.NewFailure(classifier.KindBadRequest, http.StatusBadRequest, st.Message())
	case codes.FailedPrecondition:
		return classifier.NewFailure(classifier.KindModelLoading, http.StatusServiceUnavailable, "")
	default:
		return classifier.NewFailure(classifier.KindUnexpectedStatus, httpStatus(st.Code()), st.Message())
	}
}

func httpStatus(code codes.Code) int {
	switch code {
	case codes.NotFound:
		return http.StatusNotFound
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Unimplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}
