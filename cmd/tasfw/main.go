package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/bigbag/tasfw/internal/detect"
	"github.com/bigbag/tasfw/internal/protocol"
	"github.com/bigbag/tasfw/internal/serial"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	verboseFlag bool
	portFlag    string
	baudFlag    int
)

var logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

func main() {
	rootCmd := &cobra.Command{
		Use:   "tasfw",
		Short: "Inspect and load TAS2781 smart amplifier firmware",
		Long: `tasfw parses TAS2781-family DSP firmware, calibration and regbin images,
and brings amplifiers up over i2c-dev or a UART register bridge.

Offline commands (info, cal, regbin, dump, build-regbin) only read files.
Device commands (load, reg, irq) take a board file with -c.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if verboseFlag {
				level = slog.LevelDebug
			}
			logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Debug logging on stderr")

	// Version command
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("tasfw %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	}

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available serial ports",
		RunE:  runList,
	}

	// Detect command
	detectCmd := &cobra.Command{
		Use:   "detect",
		Short: "Find register bridges",
		Long:  "Probe serial ports for register bridges and report their identity.",
		RunE:  runDetect,
	}
	detectCmd.Flags().StringVarP(&portFlag, "port", "p", "", "Serial port (scan all if not specified)")
	detectCmd.Flags().IntVarP(&baudFlag, "baud", "b", protocol.DefaultBaudRate, "Baud rate")

	rootCmd.AddCommand(versionCmd, listCmd, detectCmd)
	rootCmd.AddCommand(inspectCommands()...)
	rootCmd.AddCommand(deviceCommands()...)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runList(cmd *cobra.Command, args []string) error {
	ports, err := serial.ListDetailed()
	if err != nil {
		return err
	}

	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return nil
	}

	fmt.Println("Available serial ports:")
	for _, p := range ports {
		fmt.Printf("  %s\n", p)
	}

	return nil
}

func runDetect(cmd *cobra.Command, args []string) error {
	if portFlag != "" {
		result, err := detect.DetectOnPort(portFlag, baudFlag, logger)
		if err != nil {
			return fmt.Errorf("no bridge on %s: %w", portFlag, err)
		}
		printBridge(result)
		return nil
	}

	fmt.Println("Scanning for register bridges...")
	bridges, err := detect.ListBridges(baudFlag, logger)
	if err != nil {
		return err
	}

	if len(bridges) == 0 {
		fmt.Println("No bridges found")
		return nil
	}

	fmt.Printf("Found %d bridge(s):\n\n", len(bridges))
	for i, b := range bridges {
		fmt.Printf("Bridge %d:\n", i+1)
		printBridge(&b)
		fmt.Println()
	}

	return nil
}

func printBridge(r *detect.Result) {
	fmt.Printf("  Port:     %s\n", r.Port)
	fmt.Printf("  Name:     %s\n", r.Name)
	if r.Version != 0 {
		fmt.Printf("  Version:  0x%04X\n", r.Version)
	}
	if r.BusHz != 0 {
		fmt.Printf("  Bus:      %d Hz\n", r.BusHz)
	}
}
