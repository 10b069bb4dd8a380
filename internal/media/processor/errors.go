package processor

import "fmt"

// ErrorKind classifies processing failures.
type ErrorKind int

const (
	KindSourceLoadFailed ErrorKind = iota + 1
	KindEncoderFault
	KindMuxerFault
	KindUnsupportedGeometry
	KindInvalidConfig
)

func (k ErrorKind) String() string {
	switch k {
	case KindSourceLoadFailed:
		return "source_load_failed"
	case KindEncoderFault:
		return "encoder_fault"
	case KindMuxerFault:
		return "muxer_fault"
	case KindUnsupportedGeometry:
		return "unsupported_geometry"
	case KindInvalidConfig:
		return "invalid_config"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is returned by Process for every failure other than cancellation.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind, so errors.Is(err, &Error{Kind: k}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Err == nil
}

func newError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Sentinels for errors.Is.
var (
	ErrSourceLoadFailed    = &Error{Kind: KindSourceLoadFailed}
	ErrEncoderFault        = &Error{Kind: KindEncoderFault}
	ErrMuxerFault          = &Error{Kind: KindMuxerFault}
	ErrUnsupportedGeometry = &Error{Kind: KindUnsupportedGeometry}
	ErrInvalidConfig       = &Error{Kind: KindInvalidConfig}
)
