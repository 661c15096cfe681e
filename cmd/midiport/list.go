package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/miditools/midiport/sdk/midi"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the available MIDI ports",
	Long:  `Enumerates the input and output ports the platform driver exposes, with their port numbers.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runList(cmd); err != nil {
			fmt.Printf("List failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command) error {
	opts := sessionOptions(cmd)
	in, err := midi.NewInput(opts...)
	if err != nil {
		return err
	}
	out, err := midi.NewOutput(opts...)
	if err != nil {
		return err
	}

	// Both sessions share the platform driver, one wait covers both.
	ctx, cancel := context.WithTimeout(context.Background(), awaitTimeout)
	defer cancel()
	if err := in.AwaitReady(ctx); err != nil {
		return fmt.Errorf("driver not ready: %w", err)
	}

	fmt.Println(color.GreenString("Input ports:"))
	for i, port := range in.Ports() {
		fmt.Printf("  %2d: %s\n", i, port.Name)
	}
	fmt.Println(color.GreenString("Output ports:"))
	for i, port := range out.Ports() {
		fmt.Printf("  %2d: %s\n", i, port.Name)
	}
	return nil
}
