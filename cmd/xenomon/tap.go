package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"sync"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/robotalks/xeno.go/pkg/env"
	"github.com/robotalks/xeno.go/pkg/l0/xeno"
	"github.com/robotalks/xeno.go/pkg/l1/msgs"
	"github.com/robotalks/xeno.go/pkg/metrics"
	"github.com/robotalks/xeno.go/pkg/transport"
)

var (
	metricsAddr    string
	dumpHex        bool
	maxFrameLength int
)

func init() {
	tapCmd.Flags().StringVar(&metricsAddr, "metrics", "", "Serve metrics on this address.")
	tapCmd.Flags().BoolVar(&dumpHex, "hex", false, "Dump frame payloads in hex.")
	tapCmd.Flags().IntVar(&maxFrameLength, "max-frame-length", xeno.DefaultMaxFrameLength, "Longest frame accepted; 0 accepts any.")
}

var tapCmd = &cobra.Command{
	Use:   "tap URL",
	Short: "Decode the frames of a byte stream",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rawURL := env.Default().URL
		if len(args) > 0 {
			rawURL = args[0]
		}
		if rawURL == "" {
			return fmt.Errorf("URL required")
		}
		ctx, cancel := signalContext()
		defer cancel()
		rw, err := transport.Open(ctx, rawURL)
		if err != nil {
			return err
		}
		defer rw.Close()

		t := newTap(cmd.OutOrStdout(), msgs.NewDefaultRegistry())
		t.scanner.MaxFrameLength = maxFrameLength
		if metricsAddr != "" {
			srv, err := metrics.Listen(metricsAddr, metrics.NewCollector("").Add(rawURL, t))
			if err != nil {
				return err
			}
			defer srv.Close()
			go func() {
				if err := srv.Run(ctx); err != nil {
					glog.Errorf("metrics server: %v", err)
				}
			}()
		}
		go func() {
			<-ctx.Done()
			rw.Close()
		}()
		err = t.Run(rw)
		if ctx.Err() != nil {
			return nil
		}
		return err
	},
}

// tap prints what a Scanner finds. Stats is safe to call concurrently.
type tap struct {
	out      io.Writer
	registry *msgs.Registry
	scanner  *xeno.Scanner
	lock     sync.Mutex
}

func newTap(out io.Writer, reg *msgs.Registry) *tap {
	return &tap{out: out, registry: reg, scanner: xeno.NewScanner()}
}

// Stats implements metrics.StatsSource.
func (t *tap) Stats() xeno.Stats {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.scanner.Stats()
}

func (t *tap) Run(r io.Reader) error {
	buf := make([]byte, xeno.DefaultReadSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			t.lock.Lock()
			t.scanner.Scan(buf[:n], t.print)
			t.lock.Unlock()
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (t *tap) print(m *xeno.Message) {
	switch m.State {
	case xeno.SyncPacket:
		fmt.Fprintln(t.out, "SYNC")
	case xeno.Error:
		fmt.Fprintf(t.out, "ERROR %v\n", m.Err)
	case xeno.AwaitingDecode:
		fmt.Fprintln(t.out, t.describe(m))
		if dumpHex && len(m.Payload) > 0 {
			fmt.Fprint(t.out, hex.Dump(m.Payload))
		}
	}
}

func (t *tap) describe(m *xeno.Message) string {
	line := fmt.Sprintf("#%d %04x", m.ID, uint16(m.Code))
	def, err := t.registry.Lookup(m.Code)
	if err != nil {
		return fmt.Sprintf("%s len=%d", line, len(m.Payload))
	}
	ev, err := def.Decode(m.Payload)
	if err != nil {
		return fmt.Sprintf("%s %s decode error: %v", line, def.Name, err)
	}
	return fmt.Sprintf("%s %s %v", line, def.Name, ev.Serializable())
}
