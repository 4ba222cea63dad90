// Package bridge talks to a UART register bridge and exposes it as a
// regio.Transport.
package bridge

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/bigbag/tasfw/internal/protocol"
	"github.com/bigbag/tasfw/internal/slip"
)

// ErrTimeout is returned when the bridge does not answer in time.
var ErrTimeout = errors.New("timeout waiting for response")

// Port is the byte stream to the bridge. *serial.Port satisfies it.
type Port interface {
	Write(data []byte) (int, error)
	ReadWithTimeout(buf []byte, timeout time.Duration) (int, error)
	Flush() error
}

// CommandError is a request the bridge answered with a failure status.
type CommandError struct {
	Command byte
	Status  byte
	Code    byte
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command 0x%02X failed: status=0x%02X error=0x%02X (%s)",
		e.Command, e.Status, e.Code, protocol.ErrorMessage(e.Code))
}

type options struct {
	log     *slog.Logger
	timeout time.Duration
	syncs   int
}

// Option configures a Client.
type Option func(*options)

// WithLogger sets the logger for protocol traces.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithTimeout sets how long a request waits for its response.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithSyncAttempts sets how many SYNC requests Connect sends before giving up.
func WithSyncAttempts(n int) Option {
	return func(o *options) { o.syncs = n }
}

// Client issues bridge requests one at a time.
type Client struct {
	port  Port
	opts  options
	split slip.Splitter
}

// New creates a client on port. Call Connect before any transfer.
func New(port Port, opts ...Option) *Client {
	o := options{
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		timeout: time.Second,
		syncs:   10,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Client{port: port, opts: o}
}

// Connect synchronizes with the bridge.
func (c *Client) Connect() error {
	if err := c.sync(); err != nil {
		return fmt.Errorf("failed to sync with bridge: %w", err)
	}
	return nil
}

func (c *Client) sync() error {
	frame := slip.Encode(protocol.NewRequest(protocol.CmdSync, protocol.SyncData()).Encode())

	for attempt := 0; attempt < c.opts.syncs; attempt++ {
		c.port.Flush()
		c.split.Reset()

		if _, err := c.port.Write(frame); err != nil {
			c.opts.log.Debug("sync write failed", "attempt", attempt, "err", err)
			continue
		}

		resp, err := c.readResponse(protocol.CmdSync, 200*time.Millisecond)
		if err != nil {
			continue
		}
		if resp.IsSuccess() {
			c.opts.log.Debug("bridge synced", "attempt", attempt)
			return nil
		}
	}

	return fmt.Errorf("sync failed after %d attempts", c.opts.syncs)
}

// Info queries the bridge identity.
func (c *Client) Info() (*protocol.Info, error) {
	resp, err := c.sendCommand(protocol.NewRequest(protocol.CmdGetInfo, nil))
	if err != nil {
		return nil, err
	}
	return protocol.ParseInfo(resp.Data)
}

// Write implements regio.Transport. Long runs are split into requests of at
// most protocol.MaxTransfer bytes.
func (c *Client) Write(addr uint8, reg byte, data []byte) error {
	for off := 0; off < len(data); off += protocol.MaxTransfer {
		end := min(off+protocol.MaxTransfer, len(data))
		req := protocol.NewRequest(protocol.CmdRegWrite,
			protocol.RegWriteData(addr, reg+byte(off), data[off:end]))
		if _, err := c.sendCommand(req); err != nil {
			return fmt.Errorf("write 0x%02X reg 0x%02X: %w", addr, reg+byte(off), err)
		}
	}
	return nil
}

// Read implements regio.Transport.
func (c *Client) Read(addr uint8, reg byte, n int) ([]byte, error) {
	out := make([]byte, 0, n)
	for off := 0; off < n; off += protocol.MaxTransfer {
		count := min(protocol.MaxTransfer, n-off)
		req := protocol.NewRequest(protocol.CmdRegRead,
			protocol.RegReadData(addr, reg+byte(off), count))
		resp, err := c.sendCommand(req)
		if err != nil {
			return nil, fmt.Errorf("read 0x%02X reg 0x%02X: %w", addr, reg+byte(off), err)
		}
		if len(resp.Data) != count {
			return nil, fmt.Errorf("read 0x%02X reg 0x%02X: got %d bytes, want %d",
				addr, reg+byte(off), len(resp.Data), count)
		}
		out = append(out, resp.Data...)
	}
	return out, nil
}

// sendCommand sends a request and waits for its successful response.
func (c *Client) sendCommand(req *protocol.Request) (*protocol.Response, error) {
	if _, err := c.port.Write(slip.Encode(req.Encode())); err != nil {
		return nil, err
	}

	resp, err := c.readResponse(req.Command, c.opts.timeout)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, &CommandError{Command: req.Command, Status: resp.Status, Code: resp.Error}
	}
	return resp, nil
}

// readResponse reads frames until one answers cmd. Frames for other
// commands, such as late SYNC echoes, are dropped.
func (c *Client) readResponse(cmd byte, timeout time.Duration) (*protocol.Response, error) {
	deadline := time.Now().Add(timeout)
	chunk := make([]byte, 256)

	for {
		for {
			data, ok := c.split.Next()
			if !ok {
				break
			}
			resp, err := protocol.DecodeResponse(data)
			if err != nil {
				c.opts.log.Debug("dropping bad frame", "err", err)
				continue
			}
			if resp.Command != cmd {
				c.opts.log.Debug("dropping stale response", "command", resp.Command)
				continue
			}
			return resp, nil
		}

		if !time.Now().Before(deadline) {
			return nil, ErrTimeout
		}
		n, err := c.port.ReadWithTimeout(chunk, 50*time.Millisecond)
		if n > 0 {
			c.split.Feed(chunk[:n])
		}
		if err != nil && n == 0 {
			c.opts.log.Debug("read failed", "err", err)
		}
	}
}
