package obd

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultWriteTimeout = 2 * time.Second
	DefaultReadTimeout  = time.Second

	// an adapter reset takes noticeably longer than a PID request
	resetReadTimeout = 3 * time.Second

	chunkBufferSize = 16
	readBufferSize  = 1024
)

// initSequence puts an ELM327 compatible adapter into a known state: reset,
// echo off, linefeeds off, spaces on, automatic protocol selection.
var initSequence = []string{"ATZ", "ATE0", "ATL0", "ATS1", "ATSP0"}

type SessionOptions struct {
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
}

// Session owns one adapter link. The link is half duplex so requests are
// strictly serialised: a request is written and its response read before the
// next request may be issued.
type Session struct {
	conn io.ReadWriteCloser
	opts SessionOptions

	mu        sync.Mutex
	chunks    chan []byte
	done      chan struct{}
	closeOnce sync.Once

	errMu   sync.Mutex
	readErr error
}

func NewSession(conn io.ReadWriteCloser, opts SessionOptions) *Session {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = DefaultReadTimeout
	}
	s := &Session{
		conn:   conn,
		opts:   opts,
		chunks: make(chan []byte, chunkBufferSize),
		done:   make(chan struct{}),
	}
	go s.readLoop()
	return s
}

// Init runs the adapter setup sequence.
func (s *Session) Init(ctx context.Context) error {
	for _, cmd := range initSequence {
		timeout := s.opts.ReadTimeout
		if cmd == "ATZ" {
			timeout = resetReadTimeout
		}
		resp, err := s.exchange(ctx, []byte(cmd+"\r"), timeout)
		if err != nil {
			return errors.Wrapf(err, "adapter init %s", cmd)
		}
		log.WithField("command", cmd).
			WithField("response", Clean(resp)).
			Debug("adapter init")
	}
	return nil
}

// Query sends a PID request and returns the raw response text.
func (s *Session) Query(ctx context.Context, cmd Command) (string, error) {
	return s.exchange(ctx, cmd.Wire(), s.opts.ReadTimeout)
}

func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.conn.Close()
	})
	return err
}

func (s *Session) exchange(ctx context.Context, request []byte, readTimeout time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.done:
		return "", ErrLinkClosed
	default:
	}

	s.drain()
	if err := s.write(ctx, request); err != nil {
		return "", err
	}
	return s.read(ctx, readTimeout)
}

func (s *Session) write(ctx context.Context, p []byte) error {
	result := make(chan error, 1)
	go func() {
		_, err := s.conn.Write(p)
		result <- err
	}()

	timer := time.NewTimer(s.opts.WriteTimeout)
	defer timer.Stop()
	select {
	case err := <-result:
		if err != nil {
			return errors.Wrapf(ErrLinkClosed, "write: %v", err)
		}
		return nil
	case <-timer.C:
		return ErrWriteTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// read collects response bytes until the adapter prompt arrives. Whatever
// arrived before the read timeout is returned as the response.
func (s *Session) read(ctx context.Context, timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var buf bytes.Buffer
	for {
		select {
		case chunk, ok := <-s.chunks:
			if !ok {
				if buf.Len() > 0 {
					return buf.String(), nil
				}
				return "", s.linkErr()
			}
			buf.Write(chunk)
			if bytes.Contains(chunk, []byte(promptChar)) {
				return buf.String(), nil
			}
		case <-timer.C:
			if buf.Len() > 0 {
				return buf.String(), nil
			}
			return "", ErrReadTimeout
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// drain discards bytes left over from an earlier timed out request.
func (s *Session) drain() {
	for {
		select {
		case chunk, ok := <-s.chunks:
			if !ok {
				return
			}
			log.WithField("bytes", len(chunk)).Debug("discarding stale adapter output")
		default:
			return
		}
	}
}

func (s *Session) readLoop() {
	defer close(s.chunks)
	buf := make([]byte, readBufferSize)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case s.chunks <- chunk:
			case <-s.done:
				return
			}
		}
		if err != nil {
			s.errMu.Lock()
			s.readErr = err
			s.errMu.Unlock()
			return
		}
	}
}

func (s *Session) linkErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.readErr == nil {
		return ErrLinkClosed
	}
	return errors.Wrapf(ErrLinkClosed, "read: %v", s.readErr)
}
