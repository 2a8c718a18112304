package ecojuicer

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
)

const simulatedPrompt = "\r\r>"

// SimulatedAdapter is an in-memory ELM327 that replays a repeating drive:
// idle, accelerate through the gears to cruising speed and slow back down.
// Every engine speed request advances the drive by one step.
type SimulatedAdapter struct {
	// FuelRate enables answers to the direct fuel rate PID.
	FuelRate bool

	mu      sync.Mutex
	pending bytes.Buffer
	cmd     strings.Builder
	ready   chan struct{}
	closed  chan struct{}

	step    int
	speed   float64
	rpm     float64
	coolant float64
	down    bool
}

func NewSimulatedAdapter() *SimulatedAdapter {
	return &SimulatedAdapter{
		ready:   make(chan struct{}, 1),
		closed:  make(chan struct{}),
		rpm:     800,
		coolant: 20,
	}
}

// Dial is a Dialer for Supervise. A closed adapter is reopened with the drive
// carrying on where it stopped.
func (sa *SimulatedAdapter) Dial() (io.ReadWriteCloser, error) {
	sa.mu.Lock()
	defer sa.mu.Unlock()
	select {
	case <-sa.closed:
		sa.closed = make(chan struct{})
		sa.pending.Reset()
		sa.cmd.Reset()
	default:
	}
	return sa, nil
}

func (sa *SimulatedAdapter) Write(p []byte) (int, error) {
	sa.mu.Lock()
	defer sa.mu.Unlock()
	select {
	case <-sa.closed:
		return 0, io.ErrClosedPipe
	default:
	}
	for _, b := range p {
		if b != '\r' {
			sa.cmd.WriteByte(b)
			continue
		}
		sa.pending.WriteString(sa.respond(strings.TrimSpace(sa.cmd.String())))
		sa.cmd.Reset()
		select {
		case sa.ready <- struct{}{}:
		default:
		}
	}
	return len(p), nil
}

func (sa *SimulatedAdapter) Read(p []byte) (int, error) {
	for {
		sa.mu.Lock()
		closed := sa.closed
		if sa.pending.Len() > 0 {
			n, _ := sa.pending.Read(p)
			sa.mu.Unlock()
			return n, nil
		}
		sa.mu.Unlock()

		select {
		case <-sa.ready:
		case <-closed:
			return 0, io.EOF
		}
	}
}

func (sa *SimulatedAdapter) Close() error {
	sa.mu.Lock()
	defer sa.mu.Unlock()
	select {
	case <-sa.closed:
	default:
		close(sa.closed)
	}
	return nil
}

func (sa *SimulatedAdapter) respond(cmd string) string {
	switch strings.ToUpper(cmd) {
	case "ATZ":
		return "\r\rELM327 v1.5" + simulatedPrompt
	case "ATE0", "ATL0", "ATS1", "ATSP0":
		return "OK" + simulatedPrompt
	case "010C":
		sa.advance()
		raw := int(sa.rpm * 4)
		return fmt.Sprintf("41 0C %02X %02X %s", raw>>8, raw&0xFF, simulatedPrompt)
	case "010D":
		return fmt.Sprintf("41 0D %02X %s", int(sa.speed), simulatedPrompt)
	case "0105":
		return fmt.Sprintf("41 05 %02X %s", int(sa.coolant)+40, simulatedPrompt)
	case "0110":
		raw := int(sa.maf() * 100)
		return fmt.Sprintf("41 10 %02X %02X %s", raw>>8, raw&0xFF, simulatedPrompt)
	case "015E":
		if !sa.FuelRate {
			return "NO DATA" + simulatedPrompt
		}
		raw := int(sa.maf() / 25.0 / 840.0 * 3600.0 * 20)
		return fmt.Sprintf("41 5E %02X %02X %s", raw>>8, raw&0xFF, simulatedPrompt)
	}
	return "?" + simulatedPrompt
}

// advance moves the drive on by one step: speed ramps between 0 and 100 km/h
// with rpm following the gear changes of a six speed box.
func (sa *SimulatedAdapter) advance() {
	sa.step++
	if sa.coolant < 90 {
		sa.coolant += 0.5
	}
	if sa.down {
		sa.speed--
	} else {
		sa.speed++
	}
	if sa.speed >= 100 {
		sa.down = true
	} else if sa.speed <= 0 {
		sa.speed = 0
		sa.down = false
	}

	if sa.speed == 0 {
		sa.rpm = 800
		return
	}
	// change up every 20 km/h, engine speed climbs from 1200 within each gear
	inGear := sa.speed - float64(int(sa.speed)/20*20)
	sa.rpm = 1200 + inGear*60
}

func (sa *SimulatedAdapter) maf() float64 {
	return sa.rpm / 100.0
}
