package forwarder

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/jd3nn1s/ecojuicer"
	"github.com/jd3nn1s/ecojuicer/trip"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const DefaultInterval = 100 * time.Millisecond

var maxPacketSize = binary.Size(Header{}) + binary.Size(Packet{})

type UDPConfig struct {
	Server   string        `toml:"server"`
	Port     int           `toml:"port"`
	Interval time.Duration `toml:"-"`
}

// UDPForwarder sends at most one snapshot per interval to a telemetry
// server. Snapshots arriving faster than that are dropped.
type UDPForwarder struct {
	Config UDPConfig

	conn    net.Conn
	fwdChan chan *ecojuicer.Snapshot
}

func NewUDPForwarder(config UDPConfig) (*UDPForwarder, error) {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	udp := &UDPForwarder{
		Config:  config,
		fwdChan: make(chan *ecojuicer.Snapshot, 1),
	}
	if err := udp.connect(); err != nil {
		return nil, err
	}
	return udp, nil
}

func (udp *UDPForwarder) Close() error {
	return udp.conn.Close()
}

func (udp *UDPForwarder) Forward(newSnapshot *ecojuicer.Snapshot, prevSnapshot *ecojuicer.Snapshot) error {
	// the caller reuses the snapshot once we return
	snapCopy := *newSnapshot
	select {
	case udp.fwdChan <- &snapCopy:
	default:
	}
	return nil
}

func (udp *UDPForwarder) Start(ctx context.Context) error {
	limiter := rate.NewLimiter(rate.Every(udp.Config.Interval), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		select {
		case s := <-udp.fwdChan:
			if err := udp.forward(s); err != nil {
				log.WithField("err", err).Error("unable to forward telemetry to server")
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (udp *UDPForwarder) forward(s *ecojuicer.Snapshot) error {
	buf := bytes.NewBuffer(make([]byte, 0, maxPacketSize))
	hdr := Header{
		Type: TypeTelemetry,
	}
	if err := binary.Write(buf, binary.LittleEndian, &hdr); err != nil {
		return errors.Wrap(err, "unable to write udp packet header")
	}
	pkt := NewPacket(s)
	if err := binary.Write(buf, binary.LittleEndian, &pkt); err != nil {
		return errors.Wrap(err, "unable to write telemetry udp packet")
	}
	_, err := udp.conn.Write(buf.Bytes())
	return errors.Wrap(err, "unable to send telemetry udp packet")
}

// SendSummary sends a finished trip as a JSON body immediately, outside the
// rate limit.
func (udp *UDPForwarder) SendSummary(s trip.Summary) error {
	body, err := json.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "unable to encode trip summary")
	}
	buf := bytes.NewBuffer(make([]byte, 0, len(body)+1))
	hdr := Header{
		Type: TypeTripSummary,
	}
	if err := binary.Write(buf, binary.LittleEndian, &hdr); err != nil {
		return errors.Wrap(err, "unable to write udp packet header")
	}
	buf.Write(body)
	_, err = udp.conn.Write(buf.Bytes())
	return errors.Wrap(err, "unable to send trip summary udp packet")
}

func (udp *UDPForwarder) connect() error {
	writeBufSize := maxPacketSize * 2

	conn, err := net.Dial("udp", fmt.Sprintf("%s:%d",
		udp.Config.Server,
		udp.Config.Port))
	if err != nil {
		return errors.Wrap(err, "unable to dial telemetry server")
	}
	udpConn := conn.(*net.UDPConn)
	if err = udpConn.SetWriteBuffer(writeBufSize); err != nil {
		return errors.Wrapf(err, "unable to set OS write buffer to %v", writeBufSize)
	}

	udp.conn = conn
	return nil
}
