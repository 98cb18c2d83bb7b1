package main

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/robotalks/xeno.go/pkg/env"
	"github.com/robotalks/xeno.go/pkg/transport/mqtt"
)

var announceURL string

func init() {
	watchCmd.Flags().StringVar(&announceURL, "announce", "", "MQTT broker URL sessions announce to.")
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print session announcements as they change",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rawURL := announceURL
		if rawURL == "" {
			rawURL = env.Default().AnnounceURL
		}
		if rawURL == "" {
			return fmt.Errorf("--announce required")
		}
		u, err := url.Parse(rawURL)
		if err != nil {
			return err
		}
		opts, prefix := mqtt.ClientOptionsFromURL(u)
		client := mqtt.NewClient(opts, prefix)
		if err := client.Connect(); err != nil {
			return err
		}
		defer client.Close()

		out := cmd.OutOrStdout()
		client.Sub("+/meta", func(topic string, payload []byte) {
			if len(payload) == 0 {
				fmt.Fprintf(out, "%s: gone\n", topic)
				return
			}
			fmt.Fprintf(out, "%s: %s\n", topic, payload)
		})
		ctx, cancel := signalContext()
		defer cancel()
		<-ctx.Done()
		return nil
	},
}
