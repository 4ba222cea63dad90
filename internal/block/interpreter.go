// Package block executes firmware command streams against a set of
// amplifier channels.
package block

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/bigbag/tasfw/internal/checksum"
	"github.com/bigbag/tasfw/internal/firmware"
	"github.com/bigbag/tasfw/internal/regio"
)

// DefaultRetries is the number of attempts a checksummed legacy block
// gets per channel.
const DefaultRetries = 6

// Device index layout of a sub-block stream.
const (
	ChannelMask   = 0x3F
	CategoryMask  = 0xC0
	CategoryMain  = 0x80
	CategoryCoeff = 0xC0
)

type options struct {
	log      *slog.Logger
	retries  int
	sleep    func(time.Duration)
	progress func()
	verifier *checksum.Verifier
}

// Option configures an Interpreter.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithRetries sets the per-channel attempt limit for checksummed legacy
// blocks.
func WithRetries(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.retries = n
		}
	}
}

// WithSleep replaces time.Sleep for DELAY commands.
func WithSleep(sleep func(time.Duration)) Option {
	return func(o *options) {
		if sleep != nil {
			o.sleep = sleep
		}
	}
}

// WithProgress registers a callback run after every executed block.
func WithProgress(fn func()) Option {
	return func(o *options) {
		o.progress = fn
	}
}

// WithVerifier replaces the default read-back checksum verifier.
func WithVerifier(v *checksum.Verifier) Option {
	return func(o *options) {
		o.verifier = v
	}
}

// Interpreter runs blocks against channels. The caller serializes access.
type Interpreter struct {
	io       regio.RegisterIO
	channels []*Channel
	opts     options
}

// NewInterpreter creates an Interpreter driving channels through rio.
// Channel i of the slice is channel i of rio.
func NewInterpreter(rio regio.RegisterIO, channels []*Channel, opts ...Option) *Interpreter {
	o := options{
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		retries: DefaultRetries,
		sleep:   time.Sleep,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.verifier == nil {
		o.verifier = checksum.NewVerifier(rio, func(ch int) {
			if ch >= 0 && ch < len(channels) {
				channels[ch].ErrCode |= ErrCodeYRAM
			}
		}, o.log)
	}
	return &Interpreter{io: rio, channels: channels, opts: o}
}

// Channels returns the channels the interpreter drives.
func (it *Interpreter) Channels() []*Channel {
	return it.channels
}

// ExecSubBlock executes the sub-block at the start of data on every
// Loading channel selected by devIdx and returns its length. Per-channel
// failures are recorded on the channel. A returned ErrOutOfBounds means
// the remaining stream is unusable.
func (it *Interpreter) ExecSubBlock(data []byte, devIdx byte) (int, error) {
	cmd, n, err := Decode(data)
	if errors.Is(err, ErrOutOfBounds) {
		return n, err
	}
	if err == nil && !cmd.Known() {
		it.opts.log.Warn("unknown sub-block", "type", cmd.Op.String())
		return n, nil
	}

	first, end := 0, len(it.channels)
	if idx := int(devIdx & ChannelMask); idx != 0 {
		if idx > len(it.channels) {
			it.opts.log.Warn("sub-block for missing channel", "dev_idx", devIdx, "channels", len(it.channels))
			return n, err
		}
		first, end = idx-1, idx
	}

	for ch := first; ch < end; ch++ {
		c := it.channels[ch]
		if !c.Loading {
			continue
		}
		cerr := err
		if cerr == nil {
			cerr = it.apply(ch, cmd)
		}
		if cerr != nil {
			it.opts.log.Error("sub-block failed", "channel", ch, "op", cmd.Op.String(), "error", cerr)
			c.fail(devIdx & CategoryMask)
		}
	}
	return n, err
}

func (it *Interpreter) apply(ch int, cmd Command) error {
	switch cmd.Op {
	case OpSingleWrite:
		var first error
		for _, w := range cmd.Writes {
			if err := it.io.Write(ch, regio.NewReg(w.Book, w.Page, w.Reg), w.Value); err != nil && first == nil {
				first = err
			}
		}
		return first
	case OpBurst:
		return it.io.BulkWrite(ch, regio.NewReg(cmd.Book, cmd.Page, cmd.Reg), cmd.Data)
	case OpDelay:
		it.opts.sleep(cmd.Delay)
		return nil
	case OpFieldWrite:
		return it.io.UpdateBits(ch, regio.NewReg(cmd.Book, cmd.Page, cmd.Reg), cmd.Mask, cmd.Value)
	}
	return nil
}

var (
	devIdxLegacy = map[uint32]byte{
		firmware.MainAllDevices: CategoryMain,
		firmware.MainDeviceA:    CategoryMain | 1,
		firmware.MainDeviceB:    CategoryMain | 2,
		firmware.MainDeviceC:    CategoryMain | 3,
		firmware.MainDeviceD:    CategoryMain | 4,
		firmware.CoeffDeviceA:   CategoryCoeff | 1,
		firmware.CoeffDeviceB:   CategoryCoeff | 2,
		firmware.CoeffDeviceC:   CategoryCoeff | 3,
		firmware.CoeffDeviceD:   CategoryCoeff | 4,
		firmware.PreDeviceA:     CategoryCoeff | 1,
		firmware.PreDeviceB:     CategoryCoeff | 2,
		firmware.PreDeviceC:     CategoryCoeff | 3,
		firmware.PreDeviceD:     CategoryCoeff | 4,
	}
	devIdx1X = map[uint32]byte{
		firmware.MainAllDevices1X: CategoryMain,
		firmware.MainDeviceA1X:    CategoryMain | 1,
		firmware.MainDeviceB1X:    CategoryMain | 2,
		firmware.MainDeviceC1X:    CategoryMain | 3,
		firmware.MainDeviceD1X:    CategoryMain | 4,
		firmware.CoeffDeviceA1X:   CategoryCoeff | 1,
		firmware.CoeffDeviceB1X:   CategoryCoeff | 2,
		firmware.CoeffDeviceC1X:   CategoryCoeff | 3,
		firmware.CoeffDeviceD1X:   CategoryCoeff | 4,
		firmware.PreDeviceA1X:     CategoryCoeff | 1,
		firmware.PreDeviceB1X:     CategoryCoeff | 2,
		firmware.PreDeviceC1X:     CategoryCoeff | 3,
		firmware.PreDeviceD1X:     CategoryCoeff | 4,
	}
)

// KernelDevIdx maps a kernel block type to its sub-block device index.
// Unknown types address every channel with no category.
func KernelDevIdx(blockType, ppc uint32) byte {
	table := devIdxLegacy
	if ppc >= firmware.PPC3Version {
		table = devIdx1X
	}
	return table[blockType]
}

// ExecSubBlocks runs up to n sub-blocks from data for devIdx and returns
// the bytes consumed. It stops early when data runs out.
func (it *Interpreter) ExecSubBlocks(data []byte, n int, devIdx byte) (int, error) {
	off := 0
	for i := 0; i < n; i++ {
		if off >= len(data) {
			it.opts.log.Warn("sub-block count overruns block", "index", i, "sublocks", n, "size", len(data))
			break
		}
		consumed, err := it.ExecSubBlock(data[off:], devIdx)
		if errors.Is(err, ErrOutOfBounds) {
			return off, fmt.Errorf("sub-block %d: %w", i, err)
		}
		off += consumed
	}
	return off, nil
}

// ExecKernelBlock runs the sub-blocks of a kernel block.
func (it *Interpreter) ExecKernelBlock(b *firmware.Block, ppc uint32) error {
	if _, err := it.ExecSubBlocks(b.Data, int(b.Sublocks), KernelDevIdx(b.Type, ppc)); err != nil {
		return fmt.Errorf("block type 0x%02X: %w", b.Type, err)
	}
	if b.PChkPresent {
		it.opts.log.Debug("kernel block P checksum not verified", "type", b.Type, "pchk", b.PChk)
	}
	if b.YChkPresent {
		it.opts.log.Debug("kernel block Y checksum not verified", "type", b.Type, "ychk", b.YChk)
	}
	return nil
}

// legacyRange returns the channel range a legacy block type addresses.
func legacyRange(t uint32) (int, int, bool) {
	switch t {
	case firmware.MainAllDevices:
		return 0, -1, true
	case firmware.MainDeviceA, firmware.CoeffDeviceA, firmware.PreDeviceA:
		return 0, 1, true
	case firmware.MainDeviceB, firmware.CoeffDeviceB, firmware.PreDeviceB:
		return 1, 2, true
	case firmware.MainDeviceC, firmware.CoeffDeviceC, firmware.PreDeviceC:
		return 2, 3, true
	case firmware.MainDeviceD, firmware.CoeffDeviceD, firmware.PreDeviceD:
		return 3, 4, true
	}
	return 0, 0, false
}

// ExecLegacyBlock runs a legacy block on every Loading channel its type
// addresses, retrying checksum and IO failures.
func (it *Interpreter) ExecLegacyBlock(b *firmware.Block) error {
	first, end, ok := legacyRange(b.Type)
	if !ok {
		it.opts.log.Warn("unknown legacy block type", "type", fmt.Sprintf("0x%02X", b.Type))
		return nil
	}
	if end < 0 || end > len(it.channels) {
		end = len(it.channels)
	}
	for ch := first; ch < end; ch++ {
		if err := it.execLegacyOn(ch, b); err != nil {
			return err
		}
	}
	return nil
}

// execLegacyOn runs b on channel ch if it is Loading. Only a malformed
// stream is returned; other failures are recorded on the channel.
func (it *Interpreter) execLegacyOn(ch int, b *firmware.Block) error {
	c := it.channels[ch]
	if !c.Loading {
		return nil
	}
	var err error
	for attempt := 1; attempt <= it.opts.retries; attempt++ {
		err = it.legacyAttempt(ch, b)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrOutOfBounds) {
			c.LoadErr = true
			return fmt.Errorf("block type 0x%02X: %w", b.Type, err)
		}
		it.opts.log.Warn("block attempt failed", "channel", ch, "type", fmt.Sprintf("0x%02X", b.Type),
			"attempt", attempt, "error", err)
	}

	it.opts.log.Error("block retries exhausted", "channel", ch, "type", fmt.Sprintf("0x%02X", b.Type),
		"attempts", it.opts.retries, "error", err)
	if firmware.IsMainBlock(b.Type) {
		c.Program = NoIndex
	} else {
		c.Config = NoIndex
	}
	c.LoadErr = true
	return nil
}

// ChecksumError reports a block checksum that did not match.
type ChecksumError struct {
	Kind    string
	Channel int
	Want    byte
	Got     byte
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("channel %d %s checksum: want 0x%02X, got 0x%02X", e.Channel, e.Kind, e.Want, e.Got)
}

func (e *ChecksumError) Is(target error) bool {
	return target == checksum.ErrMismatch
}

func (it *Interpreter) legacyAttempt(ch int, b *firmware.Block) error {
	c := it.channels[ch]
	if b.PChkPresent {
		if err := it.io.Write(ch, regio.RegI2CChecksum, 0); err != nil {
			return err
		}
	}

	var ycrc byte
	for cmd := 0; cmd < int(b.Commands); {
		lc, step, err := DecodeLegacy(b.Data, cmd)
		if err != nil {
			return err
		}
		cmd += step

		switch lc.Op {
		case LegacyWrite:
			if err := it.io.Write(ch, regio.NewReg(lc.Book, lc.Page, lc.Reg), lc.Value); err != nil {
				return err
			}
			if b.YChkPresent {
				crc, err := it.opts.verifier.Single(ch, lc.Book, lc.Page, lc.Reg, lc.Value)
				if err != nil {
					return err
				}
				ycrc += crc
			}
		case LegacyDelay:
			it.opts.sleep(lc.Delay)
		case LegacyBulk:
			if err := it.io.BulkWrite(ch, regio.NewReg(lc.Book, lc.Page, lc.Reg), lc.Data); err != nil {
				return err
			}
			if b.YChkPresent {
				crc, err := it.opts.verifier.Multi(ch, lc.Book, lc.Page, lc.Reg, len(lc.Data))
				if err != nil {
					return err
				}
				ycrc += crc
			}
		}
	}

	if b.PChkPresent {
		got, err := it.io.Read(ch, regio.RegI2CChecksum)
		if err != nil {
			return err
		}
		if got != b.PChk {
			c.ErrCode |= ErrCodePRAM
			return &ChecksumError{Kind: "PRAM", Channel: ch, Want: b.PChk, Got: got}
		}
		c.ErrCode &^= ErrCodePRAM
	}
	if b.YChkPresent {
		if ycrc != b.YChk {
			c.ErrCode |= ErrCodeYRAM
			return &ChecksumError{Kind: "YRAM", Channel: ch, Want: b.YChk, Got: ycrc}
		}
		c.ErrCode &^= ErrCodeYRAM
	}
	return nil
}

// ExecData runs the blocks of d in order.
func (it *Interpreter) ExecData(d *firmware.Data, format firmware.Format, ppc uint32) error {
	for i := range d.Blocks {
		b := &d.Blocks[i]
		var err error
		if format == firmware.FormatKernel {
			err = it.ExecKernelBlock(b, ppc)
		} else {
			err = it.ExecLegacyBlock(b)
		}
		if err != nil {
			return fmt.Errorf("%s block %d: %w", d.Name, i, err)
		}
		if it.opts.progress != nil {
			it.opts.progress()
		}
	}
	return nil
}

// ExecCalibration replays calibration data on channel ch alone. A
// calibration image describes a single device, so its block types are
// not used for routing.
func (it *Interpreter) ExecCalibration(ch int, d *firmware.Data) error {
	if ch < 0 || ch >= len(it.channels) {
		return fmt.Errorf("calibration channel %d: %w", ch, regio.ErrNoSuchChannel)
	}
	for i := range d.Blocks {
		if err := it.execLegacyOn(ch, &d.Blocks[i]); err != nil {
			return fmt.Errorf("calibration block %d: %w", i, err)
		}
	}
	return nil
}
