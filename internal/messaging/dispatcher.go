// Package messaging turns broker deliveries into catalog commands and the
// command outcomes back into acknowledgment decisions and replies.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"catalog-service/internal/domain"
	"catalog-service/internal/middleware"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var (
	ErrParse          = errors.New("malformed payload")
	ErrValidation     = errors.New("validation failed")
	ErrUnknownPattern = errors.New("unknown pattern")
)

// Error types carried in replies
const (
	TypeValidation     = "validation"
	TypeParse          = "parse_error"
	TypeNotFound       = "not_found"
	TypeForbidden      = "forbidden"
	TypeConflict       = "conflict"
	TypeBadRequest     = "bad_request"
	TypeUnknownPattern = "unknown_pattern"
)

// ValidationFailure reports the fields a payload failed validation on
type ValidationFailure struct {
	Fields []middleware.ValidationError
}

func (e *ValidationFailure) Error() string {
	return fmt.Sprintf("%s: %d invalid field(s)", ErrValidation, len(e.Fields))
}

func (e *ValidationFailure) Unwrap() error {
	return ErrValidation
}

// ReplyError is the typed error object returned to callers
type ReplyError struct {
	Type          string                       `json:"type"`
	Code          int                          `json:"code"`
	Message       string                       `json:"message"`
	InvalidFields []middleware.ValidationError `json:"invalidFields,omitempty"`
}

// Reply is the payload published back to the caller
type Reply struct {
	ID         string      `json:"id,omitempty"`
	Response   interface{} `json:"response,omitempty"`
	Err        *ReplyError `json:"err,omitempty"`
	IsDisposed bool        `json:"isDisposed"`
}

// Outcome is the acknowledgment decision for one command. A nacked outcome
// carries no reply; the broker will redeliver or dead-letter the message.
type Outcome struct {
	Ack   bool
	Reply *Reply
	Err   error
}

// HandlerFunc executes one decoded command
type HandlerFunc func(ctx context.Context, data json.RawMessage) (interface{}, error)

// Dispatcher routes a command pattern to its handler and decides ack or nack
type Dispatcher struct {
	handlers map[string]HandlerFunc
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewDispatcher creates a Dispatcher with no registered patterns
func NewDispatcher(logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		logger:   logger,
		tracer:   otel.Tracer("catalog-service/messaging"),
	}
}

// Handle registers h for pattern, replacing any previous handler
func (d *Dispatcher) Handle(pattern string, h HandlerFunc) {
	d.handlers[pattern] = h
}

// Patterns returns the registered patterns
func (d *Dispatcher) Patterns() []string {
	patterns := make([]string, 0, len(d.handlers))
	for p := range d.handlers {
		patterns = append(patterns, p)
	}
	return patterns
}

// Dispatch runs the handler registered for pattern. Caller errors are acked
// with a typed reply; every other failure is nacked.
func (d *Dispatcher) Dispatch(ctx context.Context, pattern string, data json.RawMessage) Outcome {
	ctx, span := d.tracer.Start(ctx, "dispatch "+pattern, trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()
	span.SetAttributes(attribute.String("messaging.pattern", pattern))

	h, ok := d.handlers[pattern]
	if !ok {
		err := fmt.Errorf("%w: %q", ErrUnknownPattern, pattern)
		span.SetAttributes(attribute.Bool("messaging.ack", true))
		return Outcome{Ack: true, Reply: &Reply{Err: replyError(err)}, Err: err}
	}

	result, err := h(ctx, data)
	if err == nil {
		span.SetAttributes(attribute.Bool("messaging.ack", true))
		return Outcome{Ack: true, Reply: &Reply{Response: result}}
	}

	span.RecordError(err)
	if re := replyError(err); re != nil {
		span.SetAttributes(
			attribute.Bool("messaging.ack", true),
			attribute.String("messaging.error_type", re.Type),
		)
		d.logger.Debug("Command rejected",
			zap.String("pattern", pattern),
			zap.String("error_type", re.Type),
			zap.Error(err),
		)
		return Outcome{Ack: true, Reply: &Reply{Err: re}, Err: err}
	}

	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.Bool("messaging.ack", false))
	d.logger.Error("Command failed",
		zap.String("pattern", pattern),
		zap.Error(err),
	)
	return Outcome{Ack: false, Err: err}
}

// replyError classifies err. It returns nil for infrastructure failures.
func replyError(err error) *ReplyError {
	var vf *ValidationFailure
	switch {
	case errors.As(err, &vf):
		return &ReplyError{Type: TypeValidation, Code: http.StatusBadRequest, Message: err.Error(), InvalidFields: vf.Fields}
	case errors.Is(err, ErrParse):
		return &ReplyError{Type: TypeParse, Code: http.StatusBadRequest, Message: err.Error()}
	case errors.Is(err, ErrUnknownPattern):
		return &ReplyError{Type: TypeUnknownPattern, Code: http.StatusNotFound, Message: err.Error()}
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrUnknownKey):
		return &ReplyError{Type: TypeNotFound, Code: http.StatusNotFound, Message: err.Error()}
	case errors.Is(err, domain.ErrTenantMismatch):
		return &ReplyError{Type: TypeForbidden, Code: http.StatusForbidden, Message: err.Error()}
	case errors.Is(err, domain.ErrVersionConflict), errors.Is(err, domain.ErrUniqueConflict), errors.Is(err, domain.ErrDuplicateKey):
		return &ReplyError{Type: TypeConflict, Code: http.StatusConflict, Message: err.Error()}
	case errors.Is(err, domain.ErrBadRequest):
		return &ReplyError{Type: TypeBadRequest, Code: http.StatusBadRequest, Message: err.Error()}
	default:
		return nil
	}
}

// Command adapts a typed handler: the payload is decoded strictly into T and
// validated before fn runs.
func Command[T any](fn func(ctx context.Context, cmd T) (interface{}, error)) HandlerFunc {
	return func(ctx context.Context, data json.RawMessage) (interface{}, error) {
		var cmd T
		if err := decodeStrict(data, &cmd); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
		if err := middleware.ValidateRequest(&cmd); err != nil {
			fields := middleware.FormatValidationErrors(err)
			if len(fields) == 0 {
				return nil, fmt.Errorf("%w: %v", ErrParse, err)
			}
			return nil, &ValidationFailure{Fields: fields}
		}
		return fn(ctx, cmd)
	}
}

// decodeStrict decodes a JSON object into v, rejecting unknown fields and
// trailing data. A JSON string holding an encoded object is unwrapped first.
func decodeStrict(data json.RawMessage, v interface{}) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		data = []byte("{}")
	}

	if data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return err
		}
		data = bytes.TrimSpace([]byte(inner))
	}

	if len(data) == 0 || data[0] != '{' {
		return errors.New("payload must be a JSON object")
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	// Token reports a stray closing delimiter as a syntax error, which
	// More alone would let through.
	if tok, err := dec.Token(); err != io.EOF {
		if err != nil {
			return fmt.Errorf("unexpected data after payload: %w", err)
		}
		return fmt.Errorf("unexpected data after payload: %v", tok)
	}
	return nil
}
