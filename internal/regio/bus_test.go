package regio_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigbag/tasfw/internal/regio"
	"github.com/bigbag/tasfw/internal/regio/memio"
)

func noSleep(time.Duration) {}

func newBus(t *testing.T, addrs ...uint8) (*regio.Bus, *memio.Memory) {
	t.Helper()
	mem := memio.New(addrs...)
	mem.SetGlobal(0x40)
	mem.Record = true
	return regio.NewBus(mem, addrs, 0x40, regio.WithSleep(noSleep)), mem
}

func writes(ops []memio.Op) []memio.Op {
	var out []memio.Op
	for _, op := range ops {
		if op.Write {
			out = append(out, op)
		}
	}
	return out
}

func TestBus_WriteSelectsBookAndPage(t *testing.T) {
	bus, mem := newBus(t, 0x38)

	require.NoError(t, bus.Write(0, regio.NewReg(140, 42, 0x58), 0xAB))

	ops := writes(mem.Ops)
	require.Len(t, ops, 4)
	assert.Equal(t, memio.Op{Write: true, Addr: 0x38, Reg: regio.PageSelectReg, Data: []byte{0}}, ops[0])
	assert.Equal(t, memio.Op{Write: true, Addr: 0x38, Reg: regio.BookSelectReg, Data: []byte{140}}, ops[1])
	assert.Equal(t, memio.Op{Write: true, Addr: 0x38, Reg: regio.PageSelectReg, Data: []byte{42}}, ops[2])
	assert.Equal(t, memio.Op{Write: true, Addr: 0x38, Reg: 0x58, Data: []byte{0xAB}}, ops[3])
	assert.Equal(t, byte(0xAB), mem.Peek(0x38, regio.NewReg(140, 42, 0x58)))
}

func TestBus_CachedBookPageSkipsSelect(t *testing.T) {
	bus, mem := newBus(t, 0x38)

	require.NoError(t, bus.Write(0, regio.NewReg(0, 5, 0x10), 1))
	mem.Ops = nil
	require.NoError(t, bus.Write(0, regio.NewReg(0, 5, 0x11), 2))
	require.Len(t, mem.Ops, 1, "same book/page must not reselect")

	mem.Ops = nil
	require.NoError(t, bus.Write(0, regio.NewReg(0, 6, 0x11), 3))
	ops := writes(mem.Ops)
	require.Len(t, ops, 2, "page change writes only the page select")
	assert.Equal(t, []byte{6}, ops[0].Data)
}

func TestBus_ChannelsHaveIndependentCaches(t *testing.T) {
	bus, mem := newBus(t, 0x38, 0x39)

	require.NoError(t, bus.Write(0, regio.NewReg(0, 2, 0x10), 1))
	mem.Ops = nil
	require.NoError(t, bus.Write(1, regio.NewReg(0, 2, 0x10), 1))

	ops := writes(mem.Ops)
	require.Len(t, ops, 4)
	for _, op := range ops {
		assert.Equal(t, uint8(0x39), op.Addr)
	}
}

func TestBus_BroadcastResetsChannelCaches(t *testing.T) {
	bus, mem := newBus(t, 0x38, 0x39)

	require.NoError(t, bus.Write(0, regio.NewReg(0, 2, 0x10), 1))
	require.NoError(t, bus.Write(bus.Broadcast(), regio.NewReg(0, 3, 0x10), 7))

	assert.Equal(t, byte(7), mem.Peek(0x38, regio.NewReg(0, 3, 0x10)))
	assert.Equal(t, byte(7), mem.Peek(0x39, regio.NewReg(0, 3, 0x10)))

	// Channel 0 must reselect book and page after a broadcast.
	mem.Ops = nil
	require.NoError(t, bus.Write(0, regio.NewReg(0, 2, 0x11), 1))
	assert.Len(t, writes(mem.Ops), 4)
}

func TestBus_BroadcastIsWriteOnly(t *testing.T) {
	bus, _ := newBus(t, 0x38)

	_, err := bus.Read(bus.Broadcast(), regio.RegMiscCfg2)
	assert.ErrorIs(t, err, regio.ErrNoSuchChannel)

	err = bus.Write(bus.Broadcast()+1, regio.RegMiscCfg2, 0)
	assert.ErrorIs(t, err, regio.ErrNoSuchChannel)
}

func TestBus_BulkReadWrite(t *testing.T) {
	bus, _ := newBus(t, 0x38)

	reg := regio.NewReg(140, 43, 8)
	require.NoError(t, bus.BulkWrite(0, reg, []byte{1, 2, 3, 4}))
	got, err := bus.BulkRead(0, reg, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, got)
}

func TestBus_UpdateBits(t *testing.T) {
	bus, mem := newBus(t, 0x38)
	mem.Poke(0x38, regio.RegMiscCfg2, 0xF0)

	require.NoError(t, bus.EnableGlobalAddress(0))
	assert.Equal(t, byte(0xF2), mem.Peek(0x38, regio.RegMiscCfg2))

	mem.Ops = nil
	require.NoError(t, bus.UpdateBits(0, regio.RegMiscCfg2, regio.GlobalAddrMask, regio.GlobalAddrEnable))
	assert.Empty(t, writes(mem.Ops), "unchanged value must not be written")
}

func TestBus_RetriesTransientFailures(t *testing.T) {
	bus, mem := newBus(t, 0x38)
	require.NoError(t, bus.Write(0, regio.NewReg(0, 0, 0x10), 0))

	failures := 2
	mem.Fault = func(op memio.Op) error {
		if failures > 0 {
			failures--
			return errors.New("nack")
		}
		return nil
	}
	require.NoError(t, bus.Write(0, regio.NewReg(0, 0, 0x10), 0x55))
	assert.Equal(t, byte(0x55), mem.Peek(0x38, regio.NewReg(0, 0, 0x10)))
}

func TestBus_GivesUpAfterRetries(t *testing.T) {
	bus, mem := newBus(t, 0x38)
	calls := 0
	mem.Fault = func(op memio.Op) error {
		calls++
		return errors.New("nack")
	}

	err := bus.Write(0, regio.NewReg(0, 0, 0x10), 1)
	require.Error(t, err)

	var ioErr *regio.IOError
	require.True(t, errors.As(err, &ioErr))
	assert.Equal(t, "write", ioErr.Op)
	assert.Equal(t, regio.DefaultRetries, calls)
}

func TestBus_SoftwareResetInvalidatesCache(t *testing.T) {
	bus, mem := newBus(t, 0x38)

	require.NoError(t, bus.SoftwareReset(0))
	mem.Ops = nil
	require.NoError(t, bus.Write(0, regio.NewReg(0, 0, 0x10), 1))
	assert.Len(t, writes(mem.Ops), 3, "book and page are reselected after reset")
}

func TestBus_InvalidateForcesReselect(t *testing.T) {
	bus, mem := newBus(t, 0x38, 0x39)

	require.NoError(t, bus.Write(0, regio.NewReg(0, 4, 0x10), 1))
	require.NoError(t, bus.Write(1, regio.NewReg(0, 4, 0x10), 1))
	bus.Invalidate()

	mem.Ops = nil
	require.NoError(t, bus.Write(0, regio.NewReg(0, 4, 0x10), 2))
	require.NoError(t, bus.Write(1, regio.NewReg(0, 4, 0x10), 2))
	assert.Len(t, writes(mem.Ops), 8, "both channels reselect book and page")
}
