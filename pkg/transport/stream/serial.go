package stream

import (
	"fmt"
	"io"
	"net/url"
	"strconv"

	"go.bug.st/serial"
)

// DefaultBaudRate is used when a serial URL has no baud parameter.
const DefaultBaudRate = 115200

var (
	parities = map[string]serial.Parity{
		"none":  serial.NoParity,
		"odd":   serial.OddParity,
		"even":  serial.EvenParity,
		"mark":  serial.MarkParity,
		"space": serial.SpaceParity,
	}
	stopBits = map[string]serial.StopBits{
		"1":   serial.OneStopBit,
		"1.5": serial.OnePointFiveStopBits,
		"2":   serial.TwoStopBits,
	}
)

// SerialMode reads the line settings from the query of a serial URL, e.g.
// serial:///dev/ttyUSB0?baud=57600&databits=8&parity=even&stopbits=1.
// Missing settings default to 115200 8N1.
func SerialMode(q url.Values) (*serial.Mode, error) {
	mode := &serial.Mode{
		BaudRate: DefaultBaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	if val := q.Get("baud"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid baud rate %q", val)
		}
		mode.BaudRate = n
	}
	if val := q.Get("databits"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil || n < 5 || n > 8 {
			return nil, fmt.Errorf("invalid data bits %q", val)
		}
		mode.DataBits = n
	}
	if val := q.Get("parity"); val != "" {
		p, ok := parities[val]
		if !ok {
			return nil, fmt.Errorf("invalid parity %q", val)
		}
		mode.Parity = p
	}
	if val := q.Get("stopbits"); val != "" {
		sb, ok := stopBits[val]
		if !ok {
			return nil, fmt.Errorf("invalid stop bits %q", val)
		}
		mode.StopBits = sb
	}
	return mode, nil
}

// OpenSerial opens a serial port in raw mode with the line settings of
// mode.
func OpenSerial(path string, mode *serial.Mode) (io.ReadWriteCloser, error) {
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", path, err)
	}
	return port, nil
}
