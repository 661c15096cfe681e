package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/miditools/midiport/sdk/midi"
	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:   "send [bytes]",
	Short: "Send one raw message to an output port",
	Long:  `Sends the message given as hex bytes, e.g. "midiport send --port 0 90 3C 64".`,
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runSend(cmd, args); err != nil {
			fmt.Printf("Send failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	sendCmd.Flags().Int("port", 0, "Output port number to send to")
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	port, _ := cmd.Flags().GetInt("port")
	message, err := parseMessage(args)
	if err != nil {
		return err
	}

	out, err := midi.NewOutput(sessionOptions(cmd)...)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), awaitTimeout)
	defer cancel()
	if err := out.AwaitReady(ctx); err != nil {
		return fmt.Errorf("driver not ready: %w", err)
	}

	if out.PortCount() == 0 {
		return fmt.Errorf("no output ports available")
	}
	name, err := out.PortName(port)
	if err != nil {
		return err
	}

	conn, err := out.Connect(port, "midiport-send")
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.Send(message); err != nil {
		return err
	}
	fmt.Printf("Sent [% X] to %s\n", message, color.CyanString(name))
	return nil
}
