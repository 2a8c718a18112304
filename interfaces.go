package ecojuicer

import (
	"context"
	"io"

	"github.com/jd3nn1s/ecojuicer/obd"
)

// Querier issues one PID request and returns the raw response. obd.Session
// is the production implementation.
type Querier interface {
	Query(ctx context.Context, cmd obd.Command) (string, error)
}

// Forwarder receives every published snapshot together with the previous one.
type Forwarder interface {
	Forward(newSnapshot *Snapshot, prevSnapshot *Snapshot) error
}

// Dialer opens the byte stream to the adapter.
type Dialer func() (io.ReadWriteCloser, error)
