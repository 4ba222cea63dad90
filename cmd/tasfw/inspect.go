package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bigbag/tasfw/internal/block"
	"github.com/bigbag/tasfw/internal/config"
	"github.com/bigbag/tasfw/internal/firmware"
	"github.com/bigbag/tasfw/internal/regbin"
)

var (
	ndevFlag int
	confFlag int
	dspFlag  bool
)

func inspectCommands() []*cobra.Command {
	infoCmd := &cobra.Command{
		Use:   "info <dsp.bin>",
		Short: "Summarize a DSP firmware image",
		Args:  cobra.ExactArgs(1),
		RunE:  runInfo,
	}
	infoCmd.Flags().IntVarP(&ndevFlag, "ndev", "n", 0, "Board channel count (taken from the image if 0)")

	calCmd := &cobra.Command{
		Use:   "cal <cal.bin>",
		Short: "Summarize a calibration image",
		Args:  cobra.ExactArgs(1),
		RunE:  runCal,
	}

	regbinCmd := &cobra.Command{
		Use:   "regbin <regbin.bin>",
		Short: "Summarize a regbin image",
		Args:  cobra.ExactArgs(1),
		RunE:  runRegbin,
	}
	regbinCmd.Flags().IntVarP(&ndevFlag, "ndev", "n", 0, "Board channel count (taken from the image if 0)")

	dumpCmd := &cobra.Command{
		Use:   "dump <image>",
		Short: "Disassemble sub-block streams",
		Long: `Disassemble the sub-block streams of a regbin image, or with --dsp the
program and configuration blocks of a kernel-format DSP image.`,
		Args: cobra.ExactArgs(1),
		RunE: runDump,
	}
	dumpCmd.Flags().IntVarP(&ndevFlag, "ndev", "n", 0, "Board channel count (taken from the image if 0)")
	dumpCmd.Flags().IntVar(&confFlag, "conf", -1, "Only this configuration (-1 for all)")
	dumpCmd.Flags().BoolVar(&dspFlag, "dsp", false, "Input is a DSP firmware image")

	buildCmd := &cobra.Command{
		Use:   "build-regbin <src.yaml> <out.bin>",
		Short: "Encode a YAML regbin description",
		Args:  cobra.ExactArgs(2),
		RunE:  runBuildRegbin,
	}

	return []*cobra.Command{infoCmd, calCmd, regbinCmd, dumpCmd, buildCmd}
}

// parseFirmware parses a DSP image. With ndev 0 the channel count the
// image declares is accepted.
func parseFirmware(buf []byte, ndev int) (*firmware.Firmware, error) {
	if ndev != 0 {
		return firmware.Parse(buf, ndev)
	}
	fw, err := firmware.Parse(buf, 1)
	var cce *firmware.ChannelCountError
	if errors.As(err, &cce) {
		return firmware.Parse(buf, cce.Got)
	}
	return fw, err
}

func parseRegbin(buf []byte, ndev int) (*regbin.Regbin, error) {
	if ndev == 0 && len(buf) >= regbin.HeaderSize {
		ndev = int(buf[23])
	}
	return regbin.Parse(buf, ndev, regbin.WithLogger(logger))
}

func runInfo(cmd *cobra.Command, args []string) error {
	buf, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read firmware file: %w", err)
	}
	fw, err := parseFirmware(buf, ndevFlag)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	fmt.Printf("File: %s (%d bytes)\n\n", args[0], len(buf))
	return fw.WriteInfo(os.Stdout)
}

func runCal(cmd *cobra.Command, args []string) error {
	buf, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read calibration file: %w", err)
	}
	cal, err := firmware.ParseCalibration(buf)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	fmt.Printf("File: %s (%d bytes)\n\n", args[0], len(buf))
	return cal.WriteInfo(os.Stdout)
}

func runRegbin(cmd *cobra.Command, args []string) error {
	buf, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read regbin file: %w", err)
	}
	rb, err := parseRegbin(buf, ndevFlag)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	fmt.Printf("File: %s (%d bytes)\n\n", args[0], len(buf))
	return rb.WriteInfo(os.Stdout)
}

func runDump(cmd *cobra.Command, args []string) error {
	buf, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}
	if dspFlag {
		return dumpFirmware(args[0], buf)
	}

	rb, err := parseRegbin(buf, ndevFlag)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	for i, ci := range rb.Configs {
		if confFlag >= 0 && i != confFlag {
			continue
		}
		fmt.Printf("Configuration %d: %s\n", i, ci.Name)
		for j, b := range ci.Blocks {
			fmt.Printf("Block %d: %s, %d sub-blocks, %d bytes\n", j, b.Type, b.Sublocks, len(b.Data))
			if err := block.Disassemble(os.Stdout, b.Data, b.DevIdx); err != nil {
				fmt.Printf("  stopped: %v\n", err)
			}
		}
		fmt.Println()
	}
	return nil
}

func dumpFirmware(path string, buf []byte) error {
	fw, err := parseFirmware(buf, ndevFlag)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if fw.Format != firmware.FormatKernel {
		return fmt.Errorf("%s: %s images hold register quads, not sub-block streams", path, fw.Format)
	}

	ppc := fw.Header.PPCVersion
	dumpData := func(kind string, i int, name string, d firmware.Data) {
		fmt.Printf("%s %d: %s\n", kind, i, name)
		for j, b := range d.Blocks {
			fmt.Printf("Block %d: type 0x%08X, %d sub-blocks, %d bytes\n", j, b.Type, b.Sublocks, len(b.Data))
			if err := block.Disassemble(os.Stdout, b.Data, block.KernelDevIdx(b.Type, ppc)); err != nil {
				fmt.Printf("  stopped: %v\n", err)
			}
		}
		fmt.Println()
	}

	if confFlag < 0 {
		for i, p := range fw.Programs {
			dumpData("Program", i, p.Name, p.Data)
		}
	}
	for i, c := range fw.Configurations {
		if confFlag >= 0 && i != confFlag {
			continue
		}
		dumpData("Configuration", i, c.Name, c.Data)
	}
	return nil
}

func runBuildRegbin(cmd *cobra.Command, args []string) error {
	src, err := config.LoadRegbinSource(args[0])
	if err != nil {
		return err
	}
	image, err := src.Encode()
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	if err := os.WriteFile(args[1], image, 0o644); err != nil {
		return fmt.Errorf("failed to write regbin: %w", err)
	}

	fmt.Printf("Wrote %s: %d configurations, %d bytes\n", args[1], len(src.Configs), len(image))
	return nil
}
