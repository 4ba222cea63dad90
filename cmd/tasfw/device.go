package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/bigbag/tasfw/internal/block"
	"github.com/bigbag/tasfw/internal/bridge"
	"github.com/bigbag/tasfw/internal/config"
	"github.com/bigbag/tasfw/internal/detect"
	"github.com/bigbag/tasfw/internal/i2cbus"
	"github.com/bigbag/tasfw/internal/regio"
	"github.com/bigbag/tasfw/internal/regio/memio"
	"github.com/bigbag/tasfw/internal/serial"
	"github.com/bigbag/tasfw/internal/tasdevice"
)

var (
	boardFlag   string
	dirFlag     string
	dryRunFlag  bool
	programFlag int
	cfgFlag     int
	regConfFlag int
	channelFlag int
)

func deviceCommands() []*cobra.Command {
	loadCmd := &cobra.Command{
		Use:   "load",
		Short: "Bring the amplifiers up",
		Long: `Load <name>_regbin.bin, <name>_dsp.bin and the per-channel calibration
files from the firmware directory, select the profile and power the
amplifiers on.

A non-zero program powers up in DSP bypass with regbin configuration 0.
With --dry-run the board is simulated in memory.`,
		Args: cobra.NoArgs,
		RunE: runLoad,
	}
	boardFlags(loadCmd)
	loadCmd.Flags().StringVarP(&dirFlag, "dir", "d", "", "Firmware directory (overrides the board file)")
	loadCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Run against simulated amplifiers")
	loadCmd.Flags().IntVar(&programFlag, "program", 0, "DSP program")
	loadCmd.Flags().IntVar(&cfgFlag, "configuration", 0, "DSP configuration")
	loadCmd.Flags().IntVar(&regConfFlag, "regconf", 0, "Regbin configuration")

	regCmd := &cobra.Command{
		Use:   "reg",
		Short: "Raw register access",
		Long: `Read or write one register. A register is book:page:reg or a composite
number. Writing to channel N, where N is the channel count, broadcasts.`,
	}
	readCmd := &cobra.Command{
		Use:   "read <reg>",
		Short: "Read a register",
		Args:  cobra.ExactArgs(1),
		RunE:  runRegRead,
	}
	writeCmd := &cobra.Command{
		Use:   "write <reg> <value>",
		Short: "Write a register",
		Args:  cobra.ExactArgs(2),
		RunE:  runRegWrite,
	}
	for _, c := range []*cobra.Command{readCmd, writeCmd} {
		boardFlags(c)
		c.Flags().IntVar(&channelFlag, "ch", 0, "Channel")
	}
	regCmd.AddCommand(readCmd, writeCmd)

	irqCmd := &cobra.Command{
		Use:   "irq",
		Short: "Dump the interrupt latches",
		Args:  cobra.NoArgs,
		RunE:  runIRQ,
	}
	boardFlags(irqCmd)

	return []*cobra.Command{loadCmd, regCmd, irqCmd}
}

func boardFlags(c *cobra.Command) {
	c.Flags().StringVarP(&boardFlag, "config", "c", "board.yaml", "Board file")
	c.Flags().StringVarP(&portFlag, "port", "p", "", "Bridge serial port (overrides the board file)")
}

// board is an opened board: the register bus and whatever must be
// closed when done.
type board struct {
	cfg    *config.Board
	bus    *regio.Bus
	closer io.Closer
}

func (b *board) Close() error {
	if b.closer != nil {
		return b.closer.Close()
	}
	return nil
}

func openBoard(dryRun bool) (*board, error) {
	cfg, err := config.Load(boardFlag)
	if err != nil {
		return nil, err
	}
	if dryRun {
		cfg.Bus.Kind = config.BusMemory
	}
	if portFlag != "" {
		cfg.Bus.Port = portFlag
	}

	b := &board{cfg: cfg}
	var tr regio.Transport
	switch cfg.Bus.Kind {
	case config.BusMemory:
		mem := memio.New(cfg.Addrs...)
		mem.SetGlobal(cfg.Global)
		tr = mem
		fmt.Println("Bus: simulated")
	case config.BusI2C:
		i2c := i2cbus.Open(cfg.Bus.Number)
		tr, b.closer = i2c, i2c
		fmt.Printf("Bus: /dev/i2c-%d\n", cfg.Bus.Number)
	case config.BusBridge:
		c, port, err := openBridge(cfg.Bus)
		if err != nil {
			return nil, err
		}
		tr, b.closer = c, port
	}

	b.bus = regio.NewBus(tr, cfg.Addrs, cfg.Global,
		regio.WithRetries(cfg.Retries.IO),
		regio.WithLogger(logger))
	return b, nil
}

func openBridge(bc config.Bus) (*bridge.Client, *serial.Port, error) {
	portName := bc.Port
	if portName == "" {
		fmt.Println("Detecting bridge...")
		result, err := detect.DetectBridge(bc.Baud, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("bridge detection failed: %w", err)
		}
		portName = result.Port
		fmt.Printf("Found %s on %s\n", result.Name, result.Port)
	}

	port, err := serial.Open(portName, bc.Baud)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open port: %w", err)
	}
	fmt.Printf("Port: %s @ %d baud\n", portName, bc.Baud)

	c := bridge.New(port, bridge.WithLogger(logger))
	if err := c.Connect(); err != nil {
		port.Close()
		return nil, nil, err
	}
	return c, port, nil
}

func runLoad(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	b, err := openBoard(dryRunFlag)
	if err != nil {
		return err
	}
	defer b.Close()
	cfg := b.cfg

	prof := cfg.Profile
	if cmd.Flags().Changed("program") {
		prof.Program = programFlag
	}
	if cmd.Flags().Changed("configuration") {
		prof.Configuration = cfgFlag
	}
	if cmd.Flags().Changed("regconf") {
		prof.RegConf = regConfFlag
	}
	dir := cfg.FirmwareDir
	if dirFlag != "" {
		dir = dirFlag
	}

	var bar *progressbar.ProgressBar
	dev := tasdevice.New(cfg.Name, b.bus, cfg.Addrs,
		tasdevice.WithLogger(logger),
		tasdevice.WithLoader(tasdevice.DirLoader(dir)),
		tasdevice.WithBlockOptions(
			block.WithRetries(cfg.Retries.Block),
			block.WithProgress(func() {
				if bar != nil {
					bar.Add(1)
				}
			}),
		))

	fmt.Printf("Loading %s firmware from %s...\n", cfg.Name, dir)
	if err := dev.Init(ctx); err != nil {
		return err
	}
	fmt.Printf("DSP firmware: %s\n", dev.FWState())

	if err := dev.SetProgram(prof.Program); err != nil {
		return err
	}
	if err := dev.SetConfiguration(prof.Configuration); err != nil {
		return err
	}
	if err := dev.SetRegConf(prof.RegConf); err != nil {
		return err
	}

	if total := replayBlocks(dev, prof); total > 0 {
		bar = progressbar.NewOptions(total,
			progressbar.OptionSetDescription("Loading"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionThrottle(100),
			progressbar.OptionClearOnFinish(),
		)
	}

	status, err := dev.Power(ctx, true)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return err
	}

	fmt.Printf("\nPowered on, channel status 0x%X\n\n", status)
	return dev.WriteInfo(os.Stdout)
}

// replayBlocks counts the DSP blocks a power-up with prof executes. The
// interpreter reports each one through its progress hook.
func replayBlocks(dev *tasdevice.Device, prof config.Profile) int {
	fw := dev.Firmware()
	if fw == nil || prof.Program != 0 {
		return 0
	}
	return len(fw.Programs[prof.Program].Data.Blocks) + len(fw.Configurations[prof.Configuration].Data.Blocks)
}

func runRegRead(cmd *cobra.Command, args []string) error {
	reg, err := parseReg(args[0])
	if err != nil {
		return err
	}
	b, err := openBoard(false)
	if err != nil {
		return err
	}
	defer b.Close()

	v, err := b.bus.Read(channelFlag, reg)
	if err != nil {
		return err
	}
	fmt.Printf("ch%d %s = 0x%02X\n", channelFlag, reg, v)
	return nil
}

func runRegWrite(cmd *cobra.Command, args []string) error {
	reg, err := parseReg(args[0])
	if err != nil {
		return err
	}
	v, err := strconv.ParseUint(args[1], 0, 8)
	if err != nil {
		return fmt.Errorf("value %q: %w", args[1], err)
	}
	b, err := openBoard(false)
	if err != nil {
		return err
	}
	defer b.Close()

	if err := b.bus.Write(channelFlag, reg, byte(v)); err != nil {
		return err
	}
	fmt.Printf("ch%d %s <- 0x%02X\n", channelFlag, reg, v)
	return nil
}

func runIRQ(cmd *cobra.Command, args []string) error {
	b, err := openBoard(false)
	if err != nil {
		return err
	}
	defer b.Close()

	dev := tasdevice.New(b.cfg.Name, b.bus, b.cfg.Addrs, tasdevice.WithLogger(logger))
	latches, err := dev.InterruptStatus()
	for _, l := range latches {
		flag := ""
		if l.Value != 0 {
			flag = "  *"
		}
		fmt.Printf("ch%d %s = 0x%02X%s\n", l.Channel, l.Reg, l.Value, flag)
	}
	return err
}

// parseReg accepts book:page:reg or a composite register number.
func parseReg(s string) (regio.Reg, error) {
	parts := strings.Split(s, ":")
	if len(parts) == 1 {
		v, err := strconv.ParseUint(s, 0, 32)
		if err != nil {
			return 0, fmt.Errorf("register %q: %w", s, err)
		}
		return regio.Reg(v), nil
	}
	if len(parts) != 3 {
		return 0, fmt.Errorf("register %q: want book:page:reg", s)
	}
	var f [3]byte
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 0, 8)
		if err != nil {
			return 0, fmt.Errorf("register %q: %w", s, err)
		}
		f[i] = byte(v)
	}
	if f[2] > 0x7F {
		return 0, fmt.Errorf("register %q: offset 0x%02X past the page", s, f[2])
	}
	return regio.NewReg(f[0], f[1], f[2]), nil
}
