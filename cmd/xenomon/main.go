// Xenomon watches xeno links without taking part in them.
//
// It either taps a byte stream and decodes the frames passing by, or
// watches the session announcements on an MQTT broker.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "xenomon",
	Short: "Passive xeno link monitor",
	Example: `  # Decode a capture file
  xenomon tap file:///tmp/capture.bin

  # Tap a serial line and serve metrics
  xenomon tap serial:///dev/ttyUSB0 --metrics :9190

  # Watch announced sessions
  xenomon watch --announce mqtt://localhost:1883/xeno/`,
	PersistentPostRun: func(*cobra.Command, []string) {
		glog.Flush()
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)

	rootCmd.AddCommand(tapCmd)
	rootCmd.AddCommand(watchCmd)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
