package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/photo-check/internal/analysis"
	"github.com/example/photo-check/internal/classifier"
	"github.com/example/photo-check/internal/imagemeta"
	"github.com/example/photo-check/internal/logging"
)

// ErrNoImage is returned when Analyze is handed an empty buffer.
var ErrNoImage = errors.New("no image data")

// Describer produces the metadata record for raw image bytes.
type Describer interface {
	Build(raw []byte) *imagemeta.Descriptor
}

// Report is the combined result for one successfully classified upload.
type Report struct {
	Predictions   []analysis.Prediction                       `json:"predictions"`
	Categories    map[analysis.Category][]analysis.Prediction `json:"categories,omitempty"`
	Metadata      *imagemeta.Descriptor                       `json:"metadata"`
	Insights      []string                                    `json:"insights"`
	Type          analysis.ResultKind                         `json:"type"`
	RequestTime   float64                                     `json:"request_time"`
	RequestID     string                                      `json:"request_id"`
	ModelMetadata map[string]any                              `json:"model_metadata,omitempty"`
}

// ClassificationError reports a classifier failure together with whatever
// metadata was computed before the call.
type ClassificationError struct {
	RequestID string
	Failure   *classifier.Failure
	Metadata  *imagemeta.Descriptor
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classification failed (request_id=%s): %v", e.RequestID, e.Failure)
}

func (e *ClassificationError) Unwrap() error {
	return e.Failure
}

// FailureBody is the JSON shape rendered for a ClassificationError.
type FailureBody struct {
	Error      string                `json:"error"`
	Kind       classifier.Kind       `json:"kind"`
	Metadata   *imagemeta.Descriptor `json:"metadata,omitempty"`
	Details    string                `json:"details,omitempty"`
	StatusCode int                   `json:"status_code,omitempty"`
	RequestID  string                `json:"request_id"`
}

// Body returns the response shape for the failure.
func (e *ClassificationError) Body() FailureBody {
	return FailureBody{
		Error:      e.Failure.Message,
		Kind:       e.Failure.Kind,
		Metadata:   e.Metadata,
		Details:    e.Failure.Body,
		StatusCode: e.Failure.StatusCode,
		RequestID:  e.RequestID,
	}
}

// AnalysisUseCase runs the describe, classify, normalize and explain steps
// for a single upload. Nothing is retained between calls.
type AnalysisUseCase struct {
	describer Describer
	client    classifier.Client
	logger    *zap.Logger
	now       func() time.Time
}

// NewAnalysisUseCase constructs a new use case instance.
func NewAnalysisUseCase(describer Describer, client classifier.Client, logger *zap.Logger) *AnalysisUseCase {
	return &AnalysisUseCase{
		describer: describer,
		client:    client,
		logger:    logger.Named("analysis_usecase"),
		now:       time.Now,
	}
}

// Analyze returns a Report, or a *ClassificationError when the classifier
// could not produce predictions.
func (uc *AnalysisUseCase) Analyze(ctx context.Context, requestID, filename string, image []byte) (*Report, error) {
	opLogger := logging.WithOperation(uc.logger, "usecase.analyze", requestID)
	if len(image) == 0 {
		return nil, logging.NewOperationError("usecase.analyze", requestID, ErrNoImage)
	}

	start := uc.now()
	desc := uc.describer.Build(image)
	desc.Filename = filename
	opLogger.Info("metadata extracted",
		zap.String("filename", filename),
		zap.Int("bytes", len(image)),
		zap.Duration("elapsed", uc.now().Sub(start)),
	)

	outcome, err := uc.client.Classify(ctx, image)
	if err != nil {
		opLogger.Error("classifier unreachable", zap.Error(err))
		return nil, &ClassificationError{RequestID: requestID, Failure: classifier.TransportFailure(err), Metadata: desc}
	}

	var success *classifier.Success
	switch o := outcome.(type) {
	case *classifier.Failure:
		opLogger.Warn("classifier reported failure", zap.String("kind", string(o.Kind)), zap.Int("status", o.StatusCode))
		return nil, &ClassificationError{RequestID: requestID, Failure: o, Metadata: desc}
	case *classifier.Success:
		success = o
	default:
		return nil, logging.NewOperationError("usecase.analyze", requestID, fmt.Errorf("unknown outcome %T", outcome))
	}

	result := analysis.Normalize(success.Payload.Predictions)
	report := &Report{
		Predictions:   result.Predictions,
		Categories:    result.Categories,
		Metadata:      desc,
		Insights:      analysis.Insights(opLogger, result.Predictions, desc),
		Type:          result.Kind,
		RequestTime:   success.Elapsed.Seconds(),
		RequestID:     requestID,
		ModelMetadata: success.Payload.Metadata,
	}
	if len(report.ModelMetadata) == 0 {
		report.ModelMetadata = nil
	}

	total := uc.now().Sub(start)
	desc.TotalProcessingTime = fmt.Sprintf("%.2f seconds", total.Seconds())
	desc.ProcessingTimeSeconds = total.Seconds()

	opLogger.Info("analysis complete",
		zap.String("type", string(report.Type)),
		zap.Int("predictions", len(report.Predictions)),
		zap.Duration("elapsed", total),
	)
	return report, nil
}
