package obd

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies why a response could not be decoded.
type Kind uint8

const (
	NoData Kind = iota + 1
	ProtocolError
	Searching
	BusInitError
	UnexpectedResponse
	ShortData
	UnknownCommand
	ParseError
)

func (k Kind) String() string {
	switch k {
	case NoData:
		return "no_data"
	case ProtocolError:
		return "protocol_error"
	case Searching:
		return "searching"
	case BusInitError:
		return "bus_init_error"
	case UnexpectedResponse:
		return "unexpected_response"
	case ShortData:
		return "short_data"
	case UnknownCommand:
		return "unknown_command"
	case ParseError:
		return "parse_error"
	}
	return "unknown"
}

// DecodeError is returned by Decode for every response that does not carry a
// usable value.
type DecodeError struct {
	Kind    Kind
	Command Command
	Raw     string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: %s (raw %q)", e.Command, e.Kind, e.Raw)
}

// KindOf returns the decode failure kind of err, or zero when err is not a
// DecodeError.
func KindOf(err error) Kind {
	if de, ok := errors.Cause(err).(*DecodeError); ok {
		return de.Kind
	}
	return 0
}

// IO level failures of a Session.
var (
	ErrReadTimeout  = errors.New("timed out waiting for adapter response")
	ErrWriteTimeout = errors.New("timed out writing command to adapter")
	ErrLinkClosed   = errors.New("adapter link closed")
)
