package ecojuicer

import (
	"context"
	"time"

	"github.com/jd3nn1s/ecojuicer/obd"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var retrySleep = time.Second

// Retryable is a connection that Retry keeps open.
type Retryable interface {
	Open() error
	Close() error
	Start(ctx context.Context) error
	Name() string
}

// Retry keeps r running until ctx is done, closing and re-opening it after
// every failure.
func Retry(ctx context.Context, r Retryable) error {
	errStarting := errors.New("starting")
	err := errStarting
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil {
			if err != errStarting {
				log.WithField("err", err).Errorf("%s: reconnecting due to error", r.Name())
				if err = r.Close(); err != nil {
					log.WithField("err", err).Warnf("%s: unable to close", r.Name())
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(retrySleep):
				}
			}
			err = r.Open()
			if err != nil {
				continue
			}
		}
		err = r.Start(ctx)
	}
}

// adapter connects a Juicer to the vehicle through a fresh session on every
// (re)connect. Trip state lives in the Juicer and survives reconnects.
type adapter struct {
	jc      *Juicer
	dial    Dialer
	opts    obd.SessionOptions
	session *obd.Session
}

func (a *adapter) Name() string {
	return "adapter"
}

func (a *adapter) Open() error {
	conn, err := a.dial()
	if err != nil {
		return errors.Wrap(err, "unable to open adapter link")
	}
	a.session = obd.NewSession(conn, a.opts)
	return nil
}

func (a *adapter) Close() error {
	if a.session == nil {
		return nil
	}
	err := a.session.Close()
	a.session = nil
	return err
}

func (a *adapter) Start(ctx context.Context) error {
	if err := a.session.Init(ctx); err != nil {
		return err
	}
	log.Info("adapter initialised")
	return a.jc.Run(ctx, a.session)
}

// Supervise polls the adapter reached through dial until ctx is cancelled,
// reconnecting whenever the link fails.
func (jc *Juicer) Supervise(ctx context.Context, dial Dialer, opts obd.SessionOptions) error {
	a := &adapter{
		jc:   jc,
		dial: dial,
		opts: opts,
	}
	defer a.Close()
	return Retry(ctx, a)
}
