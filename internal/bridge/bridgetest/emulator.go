// Package bridgetest emulates a register bridge in memory.
package bridgetest

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/bigbag/tasfw/internal/protocol"
	"github.com/bigbag/tasfw/internal/regio"
	"github.com/bigbag/tasfw/internal/slip"
)

// Emulator answers bridge requests against a register transport. It
// implements bridge.Port.
type Emulator struct {
	mu    sync.Mutex
	bus   regio.Transport
	in    slip.Splitter
	out   []byte
	Info  protocol.Info
	Reqs  []protocol.Request
	Junk  []byte
	Error byte

	// Silent drops every request without answering.
	Silent bool
	// Corrupt, when set, can rewrite a response frame before it is queued.
	Corrupt func(req *protocol.Request, frame []byte) []byte
}

// New creates an emulator forwarding to bus.
func New(bus regio.Transport) *Emulator {
	return &Emulator{
		bus:  bus,
		Info: protocol.Info{Version: 0x0100, BusHz: 400000, Name: "tas-bridge"},
	}
}

func (e *Emulator) Write(data []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.in.Feed(data)
	for {
		frame, ok := e.in.Next()
		if !ok {
			return len(data), nil
		}
		req, err := protocol.DecodeRequest(frame)
		if err != nil {
			e.queue(&protocol.Response{Status: 1, Error: protocol.ErrInvalidCRC}, nil)
			continue
		}
		e.Reqs = append(e.Reqs, *req)
		if e.Silent {
			continue
		}
		e.queue(e.handle(req), req)
	}
}

func (e *Emulator) queue(resp *protocol.Response, req *protocol.Request) {
	e.out = append(e.out, e.Junk...)
	frame := slip.Encode(resp.Encode())
	if e.Corrupt != nil && req != nil {
		frame = e.Corrupt(req, frame)
	}
	e.out = append(e.out, frame...)
}

func (e *Emulator) handle(req *protocol.Request) *protocol.Response {
	resp := &protocol.Response{Command: req.Command}
	fail := func(code byte) *protocol.Response {
		resp.Status, resp.Error = 1, code
		return resp
	}
	if e.Error != 0 && req.Command != protocol.CmdSync {
		return fail(e.Error)
	}

	switch req.Command {
	case protocol.CmdSync:
	case protocol.CmdGetInfo:
		data := binary.LittleEndian.AppendUint32(nil, e.Info.Version)
		data = binary.LittleEndian.AppendUint32(data, e.Info.BusHz)
		resp.Data = append(append(data, e.Info.Name...), 0)
	case protocol.CmdRegRead:
		if len(req.Data) != 3 {
			return fail(protocol.ErrInvalidMessage)
		}
		if int(req.Data[2]) > protocol.MaxTransfer {
			return fail(protocol.ErrTooLong)
		}
		data, err := e.bus.Read(req.Data[0], req.Data[1], int(req.Data[2]))
		if err != nil {
			return fail(protocol.ErrBusNak)
		}
		resp.Data = data
	case protocol.CmdRegWrite:
		if len(req.Data) < 2 {
			return fail(protocol.ErrInvalidMessage)
		}
		if len(req.Data)-2 > protocol.MaxTransfer {
			return fail(protocol.ErrTooLong)
		}
		if err := e.bus.Write(req.Data[0], req.Data[1], req.Data[2:]); err != nil {
			return fail(protocol.ErrBusNak)
		}
	default:
		return fail(protocol.ErrInvalidMessage)
	}
	return resp
}

// ReadWithTimeout hands out queued response bytes. It never blocks.
func (e *Emulator) ReadWithTimeout(buf []byte, _ time.Duration) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := copy(buf, e.out)
	e.out = e.out[n:]
	return n, nil
}

// Flush drops queued response bytes.
func (e *Emulator) Flush() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.out = nil
	return nil
}

// Requests returns the commands received so far.
func (e *Emulator) Requests() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()

	cmds := make([]byte, len(e.Reqs))
	for i, r := range e.Reqs {
		cmds[i] = r.Command
	}
	return cmds
}
