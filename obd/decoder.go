package obd

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

const promptChar = ">"

// Decode turns a raw adapter response for cmd into a signal. Every failure is
// returned as a *DecodeError; Decode never panics.
//
// A fuel rate reply that echoes PID 5E is always decoded with the standard
// ((256A)+B)/20 formula. A leading number is only read as L/h when the echo is
// missing, as sent by bridges that convert the value themselves.
func Decode(cmd Command, raw string) (sig Signal, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("command", cmd).
				WithField("raw", raw).
				Errorf("recovered from decode panic: %v", r)
			sig, err = Signal{}, &DecodeError{Kind: ParseError, Command: cmd, Raw: raw}
		}
	}()

	cleaned := Clean(raw)
	if kind, ok := classify(cleaned); ok {
		return Signal{}, &DecodeError{Kind: kind, Command: cmd, Raw: raw}
	}

	fail := func(kind Kind) (Signal, error) {
		return Signal{}, &DecodeError{Kind: kind, Command: cmd, Raw: raw}
	}

	pid := cmd.PID()
	pidIndex := -1
	if pid != "" {
		pidIndex = strings.Index(strings.ToUpper(cleaned), strings.ToUpper(pid))
	}

	// some bridges report the fuel rate already converted to L/h
	if cmd == CommandFuelRate && pidIndex == -1 {
		if v, ok := leadingNumber(cleaned); ok {
			return Signal{Kind: FuelRateLh, Value: v}, nil
		}
	}

	if pidIndex == -1 {
		if !isKnown(cmd) {
			return fail(UnknownCommand)
		}
		return fail(UnexpectedResponse)
	}
	data := hexDigits(cleaned[pidIndex+len(pid):])

	log.WithField("command", cmd).WithField("data", data).Debug("decoding response")

	switch cmd {
	case CommandRPM:
		if len(data) < 4 {
			return fail(ShortData)
		}
		a, b := hexByte(data, 0), hexByte(data, 1)
		return Signal{Kind: EngineSpeedRPM, Value: float64((256*a + b) / 4)}, nil
	case CommandSpeed:
		if len(data) < 2 {
			return fail(ShortData)
		}
		return Signal{Kind: VehicleSpeedKmh, Value: float64(hexByte(data, 0))}, nil
	case CommandCoolantTemp:
		if len(data) < 2 {
			return fail(ShortData)
		}
		return Signal{Kind: CoolantTempC, Value: float64(hexByte(data, 0) - 40)}, nil
	case CommandMAF:
		if len(data) < 4 {
			return fail(ShortData)
		}
		a, b := hexByte(data, 0), hexByte(data, 1)
		return Signal{Kind: MassAirFlowGs, Value: float64(256*a+b) / 100.0}, nil
	case CommandFuelRate:
		if len(data) < 4 {
			return fail(ShortData)
		}
		a, b := hexByte(data, 0), hexByte(data, 1)
		return Signal{Kind: FuelRateLh, Value: float64(256*a+b) / 20.0}, nil
	}
	return fail(UnknownCommand)
}

// Clean strips prompt characters and surrounding whitespace from a response.
func Clean(raw string) string {
	return strings.TrimSpace(strings.Replace(raw, promptChar, "", -1))
}

// classify reports the status condition of a cleaned response, if any.
func classify(cleaned string) (Kind, bool) {
	upper := strings.ToUpper(cleaned)
	switch {
	case upper == "" || upper == "NO DATA":
		return NoData, true
	case strings.Contains(upper, "ERROR") || strings.HasPrefix(upper, "?"):
		return ProtocolError, true
	case strings.Contains(upper, "SEARCHING"):
		return Searching, true
	case strings.Contains(upper, "BUS INIT"):
		return BusInitError, true
	}
	return 0, false
}

func isKnown(cmd Command) bool {
	switch cmd {
	case CommandRPM, CommandSpeed, CommandCoolantTemp, CommandMAF, CommandFuelRate:
		return true
	}
	return false
}

func hexDigits(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F') {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// hexByte parses the n-th byte pair of a hex digit string. Callers check the
// length; a malformed pair panics and is recovered by Decode.
func hexByte(data string, n int) int {
	v, err := strconv.ParseUint(data[n*2:n*2+2], 16, 8)
	if err != nil {
		panic(fmt.Sprintf("invalid hex byte %q", data[n*2:n*2+2]))
	}
	return int(v)
}

func leadingNumber(s string) (float64, bool) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}
