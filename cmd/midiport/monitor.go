package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/miditools/midiport/sdk/contracts"
	"github.com/miditools/midiport/sdk/midi"
	"github.com/spf13/cobra"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Print every message arriving on an input port",
	Long:  `Connects to an input port and prints each message with its timestamp until interrupted.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runMonitor(cmd); err != nil {
			fmt.Printf("Monitor failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	monitorCmd.Flags().Int("port", 0, "Input port number to monitor")
	monitorCmd.Flags().String("ignore", "", "Comma-separated categories to drop: sysex, time, activesense, all")
	monitorCmd.Flags().String("config", "", "YAML file with monitor settings; flags take precedence")
	rootCmd.AddCommand(monitorCmd)
}

// monitorStats is the connection context. The delivery callback owns it
// while the connection is live; Close hands it back for the summary.
type monitorStats struct {
	received uint64
}

func runMonitor(cmd *cobra.Command) error {
	port, _ := cmd.Flags().GetInt("port")
	ignoreSpec, _ := cmd.Flags().GetString("ignore")
	configPath, _ := cmd.Flags().GetString("config")

	if configPath != "" {
		cfg, err := loadMonitorConfig(configPath)
		if err != nil {
			return err
		}
		if !cmd.Flags().Changed("port") {
			port = cfg.Port
		}
		if !cmd.Flags().Changed("ignore") && len(cfg.Ignore) > 0 {
			ignoreSpec = strings.Join(cfg.Ignore, ",")
		}
	}

	ignore, err := parseIgnore(ignoreSpec)
	if err != nil {
		return err
	}

	in, err := midi.NewInput(append(sessionOptions(cmd), contracts.WithIgnore(ignore))...)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), awaitTimeout)
	defer cancel()
	if err := in.AwaitReady(ctx); err != nil {
		return fmt.Errorf("driver not ready: %w", err)
	}

	if in.PortCount() == 0 {
		return fmt.Errorf("no input ports available")
	}
	name, err := in.PortName(port)
	if err != nil {
		return err
	}

	conn, err := midi.Connect(in, port, "midiport-monitor", func(timestampUS uint64, message []byte, stats *monitorStats) {
		stats.received++
		fmt.Printf("%s: %v (len = %d)\n", color.GreenString("%d", timestampUS), message, len(message))
	}, monitorStats{})
	if err != nil {
		return err
	}

	fmt.Printf("Monitoring %s, press Ctrl-C to stop\n", color.CyanString(name))

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	<-shutdown

	_, stats := conn.Close()
	fmt.Printf("\nReceived %d messages\n", stats.received)
	return nil
}
