package playback

import (
	"errors"
	"fmt"
)

// ErrorKind classifies engine failures into a closed set. Hosts switch on the
// kind instead of parsing message text.
type ErrorKind int

const (
	// KindOpenFailure covers unreadable paths, unsupported containers, or
	// sources with no decodable stream. Non-fatal; Open may be retried.
	KindOpenFailure ErrorKind = iota
	// KindCodecOpenFailure means one stream type could not be decoded and
	// was excluded (e.g. video-only playback after an audio codec failure).
	KindCodecOpenFailure
	// KindHWAccelFailure means hardware decode setup failed and the engine
	// fell back to software. Logged, never surfaced as an event.
	KindHWAccelFailure
	// KindDecodeFailure is a transient per-packet decode error; the unit is
	// skipped and the pipeline continues.
	KindDecodeFailure
	// KindSeekFailure means a seek did not complete; position is unchanged.
	KindSeekFailure
	// KindThreadFailure is an unexpected failure inside a pipeline thread.
	// The thread stops itself; the other threads continue.
	KindThreadFailure
)

func (k ErrorKind) String() string {
	switch k {
	case KindOpenFailure:
		return "open"
	case KindCodecOpenFailure:
		return "codec-open"
	case KindHWAccelFailure:
		return "hwaccel"
	case KindDecodeFailure:
		return "decode"
	case KindSeekFailure:
		return "seek"
	case KindThreadFailure:
		return "thread"
	default:
		return "unknown"
	}
}

// EngineError is the error type delivered on the error event.
type EngineError struct {
	Kind ErrorKind
	Err  error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("playback %s failure: %v", e.Kind, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

func engineErr(kind ErrorKind, err error) *EngineError {
	return &EngineError{Kind: kind, Err: err}
}

// ErrAborted is returned by queue operations after Abort has been called.
var ErrAborted = errors.New("playback: queue aborted")

// ErrClosed is returned by control operations on a closed player.
var ErrClosed = errors.New("playback: player closed")

// ErrNoStream indicates an open source contained no decodable stream
// matching the requested options.
var ErrNoStream = errors.New("playback: no decodable stream")
