package collector

import (
	"context"
	"errors"
	"time"

	"github.com/rickgao/binance-collector/internal/connection"
)

// Controller errors.
var (
	ErrTransport  = errors.New("transport error")
	ErrAlreadyRan = errors.New("controller already ran")
)

// FrameSource yields frames in arrival order. Next returns io.EOF when the
// stream ends normally; any other error is terminal.
type FrameSource interface {
	Next(ctx context.Context) (connection.Frame, error)
}

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// StopReason tells why the ingestion loop ended.
type StopReason int

const (
	ReasonNone StopReason = iota
	ReasonDeadline
	ReasonStreamEnd
	ReasonTransportError
	ReasonSinkError
	ReasonCanceled
)

// String returns the reason name used in logs.
func (r StopReason) String() string {
	switch r {
	case ReasonDeadline:
		return "deadline"
	case ReasonStreamEnd:
		return "stream_end"
	case ReasonTransportError:
		return "transport_error"
	case ReasonSinkError:
		return "sink_error"
	case ReasonCanceled:
		return "canceled"
	default:
		return "none"
	}
}

// Planned reports whether the loop ended without a failure.
func (r StopReason) Planned() bool {
	return r == ReasonDeadline || r == ReasonStreamEnd || r == ReasonCanceled
}

// Config holds the run limits.
type Config struct {
	MaxDuration time.Duration
	BatchSize   int
}

// Result summarizes a run.
type Result struct {
	Reason  StopReason
	Frames  int64 // frames read from the source
	Rows    int64 // rows appended to the accumulator
	Written int64 // rows accepted by the sink
	Chunks  int64
	Elapsed time.Duration
}
