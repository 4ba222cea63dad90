package regio

import (
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Transport retry defaults.
const (
	DefaultRetries    = 3
	DefaultRetryDelay = 5 * time.Millisecond
)

type bookPage struct {
	book int
	page int
}

var unknownBookPage = bookPage{book: -1, page: -1}

type options struct {
	retries    int
	retryDelay time.Duration
	sleep      func(time.Duration)
	log        *slog.Logger
}

// Option configures a Bus.
type Option func(*options)

// WithRetries sets how many times a transport call is attempted.
func WithRetries(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.retries = n
		}
	}
}

// WithRetryDelay sets the pause between transport attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(o *options) {
		o.retryDelay = d
	}
}

// WithSleep replaces time.Sleep, mostly for tests.
func WithSleep(sleep func(time.Duration)) Option {
	return func(o *options) {
		if sleep != nil {
			o.sleep = sleep
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// Bus implements RegisterIO on top of a Transport. It tracks the selected
// book and page of every channel so redundant select writes are skipped.
//
// Bus is not safe for concurrent use.
type Bus struct {
	tr     Transport
	addrs  []uint8
	global uint8
	opts   options

	cache        []bookPage
	globalCache  bookPage
	globalActive bool
}

// NewBus creates a Bus for the channel addresses in addrs. The global
// address serves the broadcast channel.
func NewBus(tr Transport, addrs []uint8, global uint8, opts ...Option) *Bus {
	o := options{
		retries:    DefaultRetries,
		retryDelay: DefaultRetryDelay,
		sleep:      time.Sleep,
		log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&o)
	}

	b := &Bus{
		tr:          tr,
		addrs:       append([]uint8(nil), addrs...),
		global:      global,
		opts:        o,
		cache:       make([]bookPage, len(addrs)),
		globalCache: unknownBookPage,
	}
	for i := range b.cache {
		b.cache[i] = unknownBookPage
	}
	return b
}

// NumChannels returns the number of physical channels.
func (b *Bus) NumChannels() int {
	return len(b.addrs)
}

// Broadcast returns the broadcast channel index.
func (b *Bus) Broadcast() int {
	return len(b.addrs)
}

// Addr returns the bus address of a channel.
func (b *Bus) Addr(ch int) (uint8, error) {
	switch {
	case ch >= 0 && ch < len(b.addrs):
		return b.addrs[ch], nil
	case ch == len(b.addrs):
		return b.global, nil
	default:
		return 0, fmt.Errorf("channel %d: %w", ch, ErrNoSuchChannel)
	}
}

// Invalidate forgets all cached book/page selections.
func (b *Bus) Invalidate() {
	for i := range b.cache {
		b.cache[i] = unknownBookPage
	}
	b.globalCache = unknownBookPage
	b.globalActive = false
}

func (b *Bus) retry(fn func() error) error {
	var err error
	for attempt := 0; attempt < b.opts.retries; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		b.opts.sleep(b.opts.retryDelay)
	}
	return err
}

func (b *Bus) rawWrite(addr uint8, reg byte, data []byte) error {
	return b.retry(func() error {
		return b.tr.Write(addr, reg, data)
	})
}

func (b *Bus) rawRead(addr uint8, reg byte, n int) ([]byte, error) {
	var out []byte
	err := b.retry(func() error {
		var err error
		out, err = b.tr.Read(addr, reg, n)
		return err
	})
	return out, err
}

// selectBookPage points the channel at book/page and returns its address.
// A book change always lands on page 0 first.
func (b *Bus) selectBookPage(ch int, book, page byte) (uint8, error) {
	var addr uint8
	var cache *bookPage

	switch {
	case ch >= 0 && ch < len(b.addrs):
		if b.globalActive {
			b.globalActive = false
			b.globalCache = unknownBookPage
		}
		addr = b.addrs[ch]
		cache = &b.cache[ch]
	case ch == len(b.addrs):
		if !b.globalActive {
			for i := range b.cache {
				b.cache[i] = unknownBookPage
			}
			b.globalActive = true
		}
		addr = b.global
		cache = &b.globalCache
	default:
		return 0, fmt.Errorf("channel %d: %w", ch, ErrNoSuchChannel)
	}

	if cache.book != int(book) {
		if err := b.rawWrite(addr, PageSelectReg, []byte{0}); err != nil {
			return 0, fmt.Errorf("select page 0: %w", err)
		}
		cache.page = 0
		if err := b.rawWrite(addr, BookSelectReg, []byte{book}); err != nil {
			return 0, fmt.Errorf("select book 0x%02X: %w", book, err)
		}
		cache.book = int(book)
	}
	if cache.page != int(page) {
		if err := b.rawWrite(addr, PageSelectReg, []byte{page}); err != nil {
			return 0, fmt.Errorf("select page 0x%02X: %w", page, err)
		}
		cache.page = int(page)
	}
	return addr, nil
}

func (b *Bus) physical(op string, ch int, reg Reg) error {
	if ch < 0 || ch >= len(b.addrs) {
		return &IOError{Op: op, Channel: ch, Reg: reg, Err: ErrNoSuchChannel}
	}
	return nil
}

// Read reads one register. The broadcast channel cannot be read.
func (b *Bus) Read(ch int, reg Reg) (byte, error) {
	if err := b.physical("read", ch, reg); err != nil {
		return 0, err
	}
	data, err := b.read(ch, reg, 1)
	if err != nil {
		return 0, &IOError{Op: "read", Channel: ch, Reg: reg, Err: err}
	}
	return data[0], nil
}

// BulkRead reads n consecutive registers.
func (b *Bus) BulkRead(ch int, reg Reg, n int) ([]byte, error) {
	if err := b.physical("bulk read", ch, reg); err != nil {
		return nil, err
	}
	data, err := b.read(ch, reg, n)
	if err != nil {
		return nil, &IOError{Op: "bulk read", Channel: ch, Reg: reg, Err: err}
	}
	return data, nil
}

func (b *Bus) read(ch int, reg Reg, n int) ([]byte, error) {
	addr, err := b.selectBookPage(ch, reg.Book(), reg.Page())
	if err != nil {
		return nil, err
	}
	data, err := b.rawRead(addr, reg.Offset(), n)
	if err != nil {
		return nil, err
	}
	if len(data) < n {
		return nil, fmt.Errorf("short read: %d of %d bytes", len(data), n)
	}
	b.opts.log.Debug("read", "ch", ch, "addr", addr, "reg", reg.String(), "len", n)
	return data, nil
}

// Write writes one register. The broadcast channel is allowed.
func (b *Bus) Write(ch int, reg Reg, value byte) error {
	if err := b.write(ch, reg, []byte{value}); err != nil {
		return &IOError{Op: "write", Channel: ch, Reg: reg, Err: err}
	}
	return nil
}

// BulkWrite writes consecutive registers starting at reg.
func (b *Bus) BulkWrite(ch int, reg Reg, data []byte) error {
	if err := b.write(ch, reg, data); err != nil {
		return &IOError{Op: "bulk write", Channel: ch, Reg: reg, Err: err}
	}
	return nil
}

func (b *Bus) write(ch int, reg Reg, data []byte) error {
	addr, err := b.selectBookPage(ch, reg.Book(), reg.Page())
	if err != nil {
		return err
	}
	if err := b.rawWrite(addr, reg.Offset(), data); err != nil {
		return err
	}
	b.opts.log.Debug("write", "ch", ch, "addr", addr, "reg", reg.String(), "len", len(data))
	return nil
}

// UpdateBits performs a read-modify-write of the bits in mask. The write
// is skipped when the register already holds the value.
func (b *Bus) UpdateBits(ch int, reg Reg, mask, value byte) error {
	if err := b.physical("update bits", ch, reg); err != nil {
		return err
	}
	data, err := b.read(ch, reg, 1)
	if err != nil {
		return &IOError{Op: "update bits", Channel: ch, Reg: reg, Err: err}
	}
	next := (data[0] &^ mask) | (value & mask)
	if next == data[0] {
		return nil
	}
	if err := b.write(ch, reg, []byte{next}); err != nil {
		return &IOError{Op: "update bits", Channel: ch, Reg: reg, Err: err}
	}
	return nil
}

// SoftwareReset resets a channel (or every channel via broadcast) and
// drops the cached selections it invalidates.
func (b *Bus) SoftwareReset(ch int) error {
	if err := b.Write(ch, RegSoftwareReset, SoftwareResetBit); err != nil {
		return err
	}
	b.Invalidate()
	return nil
}

// EnableGlobalAddress lets a channel answer on the shared global address.
func (b *Bus) EnableGlobalAddress(ch int) error {
	return b.UpdateBits(ch, RegMiscCfg2, GlobalAddrMask, GlobalAddrEnable)
}
