// Package dashcan mirrors live telemetry onto a CAN bus for a dashboard
// display and listens for the display's trip reset button.
package dashcan

import (
	"context"
	"encoding/binary"
	"math"
	"sync"

	"github.com/brutella/can"
	"github.com/jd3nn1s/ecojuicer"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	frameCoolantTemp uint32 = 0x101
	frameFuelRate    uint32 = 0x102
	frameSpeed       uint32 = 0x103
	frameRPM         uint32 = 0x104
	frameGear        uint32 = 0x105

	frameTripReset uint32 = 0x110
)

type CANBus interface {
	SubscribeFunc(can.HandlerFunc)
	ConnectAndPublish() error
	Disconnect() error
	Publish(can.Frame) error
}

var newBus = func(name string) (CANBus, error) {
	return can.NewBusForInterfaceWithName(name)
}

type Callbacks struct {
	// ResetTrip is called when the display asks for a new trip.
	ResetTrip func()
}

// Dash is a CAN connected display. It implements ecojuicer.Retryable and
// ecojuicer.Forwarder.
type Dash struct {
	Interface string
	cb        Callbacks

	mu  sync.Mutex
	bus CANBus
	// missed is set while snapshots arrive with no bus to show them on
	missed bool
}

func NewDash(iface string, cb Callbacks) *Dash {
	return &Dash{
		Interface: iface,
		cb:        cb,
	}
}

func (d *Dash) Name() string {
	return "canbus"
}

func (d *Dash) Open() error {
	bus, err := newBus(d.Interface)
	if err != nil {
		return errors.Wrapf(err, "unable to open can interface %s", d.Interface)
	}
	d.mu.Lock()
	d.bus = bus
	d.mu.Unlock()
	return nil
}

func (d *Dash) Close() error {
	d.mu.Lock()
	bus := d.bus
	d.bus = nil
	d.mu.Unlock()
	if bus == nil {
		return nil
	}
	return bus.Disconnect()
}

// Start receives frames until the bus fails or ctx is done.
func (d *Dash) Start(ctx context.Context) error {
	bus := d.connected()
	if bus == nil {
		return errors.New("can bus not connected")
	}
	bus.SubscribeFunc(d.handleFrame)
	log.WithField("interface", d.Interface).Info("CAN bus opened and subscribed")

	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-ctx.Done():
			log.WithField("err", ctx.Err()).Info("stopping can bus")
			if err := bus.Disconnect(); err != nil {
				log.WithField("err", err).Warn("unable to disconnect canbus after context")
			}
		case <-stopped:
		}
	}()

	if err := bus.ConnectAndPublish(); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return errors.New("can bus disconnected")
}

func (d *Dash) connected() CANBus {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bus
}

// Forward publishes the readings that changed since prevSnapshot. Error
// snapshots are not shown on the display. Snapshots arriving while the bus is
// down are dropped and everything is sent again once it is back.
func (d *Dash) Forward(newSnapshot *ecojuicer.Snapshot, prevSnapshot *ecojuicer.Snapshot) error {
	if newSnapshot.Err != nil {
		return nil
	}
	d.mu.Lock()
	bus, missed := d.bus, d.missed
	if bus == nil && !missed {
		log.WithField("interface", d.Interface).Debug("can bus not connected, dropping telemetry")
	}
	d.missed = bus == nil
	d.mu.Unlock()
	if bus == nil {
		return nil
	}
	all := missed || prevSnapshot.Err != nil || prevSnapshot.Seq == 0

	var frames []can.Frame
	if all || newSnapshot.SpeedKmh != prevSnapshot.SpeedKmh {
		frames = append(frames, uint8Frame(frameSpeed, uint8(math.Min(newSnapshot.SpeedKmh, 255))))
	}
	if all || newSnapshot.RPM != prevSnapshot.RPM {
		frames = append(frames, uint16Frame(frameRPM, uint16(newSnapshot.RPM)))
	}
	if all || newSnapshot.Gear != prevSnapshot.Gear {
		frames = append(frames, uint8Frame(frameGear, gearByte(newSnapshot.Gear)))
	}
	if newSnapshot.HasCoolant && (all || newSnapshot.CoolantTempC != prevSnapshot.CoolantTempC) {
		frames = append(frames, uint16Frame(frameCoolantTemp, uint16(int16(newSnapshot.CoolantTempC))))
	}
	if all || newSnapshot.FuelRateLh != prevSnapshot.FuelRateLh {
		// same 0.05 L/h resolution as the fuel rate PID
		frames = append(frames, uint16Frame(frameFuelRate, uint16(math.Round(newSnapshot.FuelRateLh*20))))
	}

	for _, f := range frames {
		if err := bus.Publish(f); err != nil {
			return errors.Wrapf(err, "unable to send frame %#x to CAN bus", f.ID)
		}
	}
	return nil
}

func (d *Dash) handleFrame(frame can.Frame) {
	log.WithField("canID", frame.ID).
		WithField("length", frame.Length).
		Debug("received canbus frame")

	switch frame.ID {
	case frameTripReset:
		if d.cb.ResetTrip == nil {
			log.WithField("canID", frame.ID).Debug("no callback registered")
			return
		}
		d.cb.ResetTrip()
	default:
		log.WithField("canID", frame.ID).Debug("ignoring canbus frame")
	}
}

func gearByte(gear string) uint8 {
	if gear == "" {
		return '-'
	}
	return gear[0]
}

func uint8Frame(id uint32, v uint8) can.Frame {
	return can.Frame{
		ID:     id,
		Length: 1,
		Data:   [8]uint8{v},
	}
}

func uint16Frame(id uint32, v uint16) can.Frame {
	f := can.Frame{
		ID:     id,
		Length: 2,
	}
	binary.LittleEndian.PutUint16(f.Data[0:2], v)
	return f
}
