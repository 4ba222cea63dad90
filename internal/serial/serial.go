// Package serial opens the UART that connects the host to a register
// bridge.
package serial

import (
	"fmt"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

const idleTimeout = 100 * time.Millisecond

// Port is an open bridge UART.
type Port struct {
	port     serial.Port
	portName string
	baudRate int
}

// Open opens portName at baudRate, 8N1.
func Open(portName string, baudRate int) (*Port, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open port %s: %w", portName, err)
	}

	if err := port.SetReadTimeout(idleTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}

	return &Port{
		port:     port,
		portName: portName,
		baudRate: baudRate,
	}, nil
}

// Close closes the port.
func (p *Port) Close() error {
	if p.port != nil {
		return p.port.Close()
	}
	return nil
}

func (p *Port) Write(data []byte) (int, error) {
	return p.port.Write(data)
}

func (p *Port) Read(buf []byte) (int, error) {
	return p.port.Read(buf)
}

// ReadWithTimeout reads with a one-off timeout. A timeout returns 0, nil.
func (p *Port) ReadWithTimeout(buf []byte, timeout time.Duration) (int, error) {
	if err := p.port.SetReadTimeout(timeout); err != nil {
		return 0, err
	}
	defer p.port.SetReadTimeout(idleTimeout)

	return p.port.Read(buf)
}

// Flush discards unread input.
func (p *Port) Flush() error {
	return p.port.ResetInputBuffer()
}

// Reset pulses DTR low, which restarts bridges wired with the usual
// auto-reset capacitor, and waits for the firmware to come up.
func (p *Port) Reset() error {
	if err := p.port.SetDTR(false); err != nil {
		return err
	}
	time.Sleep(50 * time.Millisecond)
	if err := p.port.SetDTR(true); err != nil {
		return err
	}
	time.Sleep(200 * time.Millisecond)
	return p.Flush()
}

func (p *Port) PortName() string {
	return p.portName
}

func (p *Port) BaudRate() int {
	return p.baudRate
}

// ListPorts returns the names of the serial ports present.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, err
	}
	return ports, nil
}

// Details describes one port as reported by the OS.
type Details struct {
	Name    string
	USB     bool
	VID     string
	PID     string
	Serial  string
	Product string
}

// ListDetailed returns the ports with their USB identity where known.
func ListDetailed() ([]Details, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}
	out := make([]Details, 0, len(ports))
	for _, p := range ports {
		out = append(out, Details{
			Name:    p.Name,
			USB:     p.IsUSB,
			VID:     p.VID,
			PID:     p.PID,
			Serial:  p.SerialNumber,
			Product: p.Product,
		})
	}
	return out, nil
}

// String formats the USB identity as VID:PID.
func (d Details) String() string {
	if !d.USB {
		return d.Name
	}
	return fmt.Sprintf("%s (%s:%s %s)", d.Name, d.VID, d.PID, d.Product)
}
