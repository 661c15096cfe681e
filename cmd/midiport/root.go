package main

import (
	"fmt"
	"os"
	"time"

	"github.com/miditools/midiport/sdk/contracts"
	"github.com/spf13/cobra"
)

const awaitTimeout = 5 * time.Second

var rootCmd = &cobra.Command{
	Use:   "midiport",
	Short: "midiport inspects and exercises MIDI ports",
	Long:  `midiport lists the MIDI ports the platform exposes, monitors an input port, and sends raw messages to an output port.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("driver", "", "Platform driver to load (e.g. portmidi); empty selects the OS default")
}

// sessionOptions builds the options every command opens its sessions
// with. The logger stays quiet below errors so command output is not
// interleaved with log lines.
func sessionOptions(cmd *cobra.Command) []contracts.Option {
	opts := []contracts.Option{
		contracts.WithClientName("midiport-cli"),
		contracts.WithLogLevel(contracts.ErrorLevel),
	}
	if driver, _ := cmd.Flags().GetString("driver"); driver != "" {
		opts = append(opts, contracts.WithDriverName(driver))
	}
	return opts
}
