// Package link opens the byte stream to an ELM327 compatible adapter over a
// serial port, a TCP socket (WiFi adapters) or a WebSocket bridge.
package link

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

const (
	DefaultBaudRate = 38400

	dialTimeout = 10 * time.Second
)

var ErrConnectionClosed = errors.New("websocket connection closed")

// Options selects the adapter link. Exactly one of Port, Address or URL is
// used, in that order of preference.
type Options struct {
	Port     string
	BaudRate int
	Address  string
	URL      string
	// SkipTLSVerify disables certificate checks for wss:// bridges.
	SkipTLSVerify bool
}

// Dial opens the configured link.
func (o Options) Dial() (io.ReadWriteCloser, error) {
	switch {
	case o.Port != "":
		baud := o.BaudRate
		if baud <= 0 {
			baud = DefaultBaudRate
		}
		return OpenSerial(o.Port, baud)
	case o.Address != "":
		return OpenTCP(o.Address)
	case o.URL != "":
		return OpenWebSocket(o.URL, o.SkipTLSVerify)
	}
	return nil, errors.New("no adapter port, address or url configured")
}

func (o Options) String() string {
	switch {
	case o.Port != "":
		return "serial:" + o.Port
	case o.Address != "":
		return "tcp:" + o.Address
	}
	return o.URL
}

type serialConnection struct {
	port serial.Port
}

func (s *serialConnection) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *serialConnection) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *serialConnection) Close() error {
	return s.port.Close()
}

// OpenSerial opens an 8N1 serial port.
func OpenSerial(portName string, baudRate int) (io.ReadWriteCloser, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open serial port %s", portName)
	}
	log.WithField("port", portName).
		WithField("baud", baudRate).
		Info("opened serial adapter")
	return &serialConnection{port: port}, nil
}

// OpenTCP connects to a WiFi adapter.
func OpenTCP(address string) (io.ReadWriteCloser, error) {
	conn, err := net.DialTimeout("tcp", address, dialTimeout)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to connect to %s", address)
	}
	log.WithField("address", address).Info("connected to network adapter")
	return conn, nil
}

// webSocketConnection presents a message oriented bridge as a byte stream.
type webSocketConnection struct {
	conn   *websocket.Conn
	buf    []byte
	closed bool
}

func (w *webSocketConnection) Read(p []byte) (int, error) {
	if w.closed {
		return 0, ErrConnectionClosed
	}
	if len(w.buf) > 0 {
		n := copy(p, w.buf)
		w.buf = w.buf[n:]
		return n, nil
	}
	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.closed = true
			return 0, err
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}
		n := copy(p, data)
		w.buf = data[n:]
		return n, nil
	}
}

func (w *webSocketConnection) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *webSocketConnection) Close() error {
	return w.conn.Close()
}

// OpenWebSocket connects to a ws:// or wss:// bridge that relays adapter
// traffic in text or binary frames.
func OpenWebSocket(wsURL string, skipTLSVerify bool) (io.ReadWriteCloser, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid url")
	}
	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, errors.Errorf("unsupported url scheme %q, use ws:// or wss://", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: dialTimeout,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipTLSVerify,
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	conn, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			return nil, errors.Wrapf(err, "websocket connection failed (HTTP %d)", resp.StatusCode)
		}
		return nil, errors.Wrap(err, "websocket connection failed")
	}
	log.WithField("url", wsURL).Info("connected to websocket bridge")
	return &webSocketConnection{conn: conn}, nil
}
