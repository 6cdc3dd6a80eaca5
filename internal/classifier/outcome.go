// Package classifier exchanges image bytes for a label/score result with the
// remote classification service and reports the result as a tagged Outcome.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Kind identifies why a classification failed.
type Kind string

const (
	KindModelLoading     Kind = "model_loading"
	KindUnauthorized     Kind = "unauthorized"
	KindBadRequest       Kind = "bad_request"
	KindUnexpectedStatus Kind = "unexpected_status"
	KindInvalidPayload   Kind = "invalid_payload"
	KindRemoteError      Kind = "remote_error"
	KindTransportError   Kind = "transport_error"
)

// Client exposes the classification call used by the analysis flow.
// A non-nil error means the call never produced a response (DNS, refused
// connection, timeout); every response is reported as an Outcome.
type Client interface {
	Classify(ctx context.Context, image []byte) (Outcome, error)
}

// Outcome is either *Success or *Failure.
type Outcome interface {
	outcome()
}

// Payload is a parsed classifier body: the prediction elements as decoded
// JSON plus any sibling keys that accompanied them.
type Payload struct {
	Predictions []any
	Metadata    map[string]any
}

// Success carries a well-formed payload and the time the call took.
type Success struct {
	Payload *Payload
	Elapsed time.Duration
}

// Failure carries a classified failure with a user-facing message.
type Failure struct {
	Kind       Kind
	StatusCode int
	Message    string
	Body       string
}

func (*Success) outcome() {}
func (*Failure) outcome() {}

// Error implements the error interface.
func (f *Failure) Error() string {
	if f.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d): %s", f.Kind, f.StatusCode, f.Message)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// TransportFailure converts an error returned by Client.Classify into the
// failure reported to the caller.
func TransportFailure(err error) *Failure {
	return &Failure{
		Kind:    KindTransportError,
		Message: "Failed to connect to the image classification service. Please check your API key and try again.",
		Body:    err.Error(),
	}
}

var failureMessages = map[Kind]string{
	KindModelLoading:   "Model is currently loading. Please try again in a few minutes.",
	KindUnauthorized:   "Invalid API key. Please check your Hugging Face API key.",
	KindBadRequest:     "Bad request. The image format or request structure is invalid.",
	KindInvalidPayload: "Invalid JSON response from API",
}

// NewFailure builds a failure with the standard message for kind. Only bad
// requests, unexpected statuses and invalid payloads keep the raw body.
func NewFailure(kind Kind, status int, body string) *Failure {
	msg, ok := failureMessages[kind]
	if !ok {
		msg = fmt.Sprintf("API request failed with status %d", status)
	}
	f := &Failure{Kind: kind, StatusCode: status, Message: msg}
	switch kind {
	case KindBadRequest, KindUnexpectedStatus, KindInvalidPayload:
		f.Body = body
	}
	return f
}

// InterpretResponse maps an HTTP status and body onto an Outcome.
func InterpretResponse(status int, body []byte, elapsed time.Duration) Outcome {
	switch status {
	case http.StatusOK:
	case http.StatusServiceUnavailable:
		return NewFailure(KindModelLoading, status, "")
	case http.StatusUnauthorized:
		return NewFailure(KindUnauthorized, status, "")
	case http.StatusBadRequest:
		return NewFailure(KindBadRequest, status, string(body))
	default:
		return NewFailure(KindUnexpectedStatus, status, string(body))
	}

	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return NewFailure(KindInvalidPayload, status, string(body))
	}
	return InterpretPayload(data, status, elapsed)
}

// InterpretPayload accepts either a list of prediction objects or an object
// with a "predictions" list. An object carrying an "error" field is a
// failure even when the transport reported success.
func InterpretPayload(data any, status int, elapsed time.Duration) Outcome {
	switch v := data.(type) {
	case []any:
		return &Success{Payload: &Payload{Predictions: v, Metadata: map[string]any{}}, Elapsed: elapsed}
	case map[string]any:
		if remote, ok := v["error"]; ok {
			return &Failure{Kind: KindRemoteError, StatusCode: status, Message: fmt.Sprintf("API Error: %v", remote)}
		}
		preds, ok := v["predictions"].([]any)
		if !ok {
			break
		}
		meta := make(map[string]any, len(v)-1)
		for key, val := range v {
			if key != "predictions" {
				meta[key] = val
			}
		}
		return &Success{Payload: &Payload{Predictions: preds, Metadata: meta}, Elapsed: elapsed}
	}

	raw, _ := json.Marshal(data)
	f := NewFailure(KindInvalidPayload, status, string(raw))
	f.Message = "Unexpected response structure from API"
	return f
}
