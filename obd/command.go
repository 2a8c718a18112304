package obd

import "strings"

// Command is a mode 01 PID request as sent to the adapter.
type Command string

const (
	CommandRPM         Command = "010C"
	CommandSpeed       Command = "010D"
	CommandCoolantTemp Command = "0105"
	CommandMAF         Command = "0110"
	CommandFuelRate    Command = "015E"
)

// PID returns the parameter id echoed back by the vehicle, i.e. the command
// without its mode prefix.
func (c Command) PID() string {
	if len(c) < 2 {
		return ""
	}
	return string(c[2:])
}

// Wire returns the bytes written to the adapter for the command.
func (c Command) Wire() []byte {
	return []byte(string(c) + "\r")
}

func (c Command) String() string {
	switch c {
	case CommandRPM:
		return "rpm"
	case CommandSpeed:
		return "speed"
	case CommandCoolantTemp:
		return "coolant"
	case CommandMAF:
		return "maf"
	case CommandFuelRate:
		return "fuelrate"
	}
	return strings.ToLower(string(c))
}
