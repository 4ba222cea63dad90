// Package detect finds register bridges on serial ports and amplifiers
// behind them.
package detect

import (
	"fmt"
	"log/slog"

	"github.com/bigbag/tasfw/internal/bridge"
	"github.com/bigbag/tasfw/internal/regio"
	"github.com/bigbag/tasfw/internal/serial"
)

// AmpAddrs are the addresses an amplifier can strap to.
var AmpAddrs = []uint8{0x38, 0x39, 0x3A, 0x3B, 0x3C, 0x3D, 0x3E, 0x3F}

// Result represents a detected bridge.
type Result struct {
	Port    string
	Name    string
	Version uint32
	BusHz   uint32
}

// DetectBridge returns the first bridge that answers on any port.
func DetectBridge(baudRate int, log *slog.Logger) (*Result, error) {
	ports, err := serial.ListPorts()
	if err != nil {
		return nil, fmt.Errorf("failed to list ports: %w", err)
	}

	if len(ports) == 0 {
		return nil, fmt.Errorf("no serial ports found")
	}

	var lastErr error
	for _, portName := range ports {
		result, err := tryPort(portName, baudRate, log)
		if err != nil {
			log.Debug("no bridge", "port", portName, "err", err)
			lastErr = err
			continue
		}
		return result, nil
	}

	return nil, fmt.Errorf("no bridge found (last error: %w)", lastErr)
}

// DetectOnPort probes a specific port.
func DetectOnPort(portName string, baudRate int, log *slog.Logger) (*Result, error) {
	return tryPort(portName, baudRate, log)
}

// ListBridges probes every port and returns the bridges that answered.
func ListBridges(baudRate int, log *slog.Logger) ([]Result, error) {
	ports, err := serial.ListPorts()
	if err != nil {
		return nil, fmt.Errorf("failed to list ports: %w", err)
	}

	var results []Result
	for _, portName := range ports {
		result, err := tryPort(portName, baudRate, log)
		if err == nil {
			results = append(results, *result)
		}
	}

	return results, nil
}

func tryPort(portName string, baudRate int, log *slog.Logger) (*Result, error) {
	port, err := serial.Open(portName, baudRate)
	if err != nil {
		return nil, err
	}
	defer port.Close()

	if err := port.Reset(); err != nil {
		return nil, fmt.Errorf("failed to reset: %w", err)
	}

	result, err := Probe(port, log)
	if err != nil {
		return nil, err
	}
	result.Port = portName
	return result, nil
}

// Probe syncs with the bridge on port and reads its identity.
func Probe(port bridge.Port, log *slog.Logger) (*Result, error) {
	c := bridge.New(port, bridge.WithLogger(log), bridge.WithSyncAttempts(5))
	if err := c.Connect(); err != nil {
		return nil, err
	}

	info, err := c.Info()
	if err != nil {
		// SYNC worked, so something speaks the protocol.
		return &Result{Name: "unknown bridge"}, nil
	}
	return &Result{Name: info.Name, Version: info.Version, BusHz: info.BusHz}, nil
}

// ScanAmplifiers returns the candidate addresses that acknowledge a read
// of the page select register.
func ScanAmplifiers(tr regio.Transport, candidates []uint8) []uint8 {
	var found []uint8
	for _, addr := range candidates {
		if _, err := tr.Read(addr, regio.PageSelectReg, 1); err == nil {
			found = append(found, addr)
		}
	}
	return found
}
