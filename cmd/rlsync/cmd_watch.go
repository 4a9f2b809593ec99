package main

import (
	"fmt"

	"readiness-sync/internal/transport"
	"readiness-sync/internal/websocket"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow row changes pushed by the proxy",
	Long: `Watch subscribes to the proxy's change feed and prints one line per
created or updated row. Cached listings are refreshed as changes arrive.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg := current.cfg
	feed := transport.NewFeed(cfg.Client.FeedURL, cfg.Client.SigningSecret, current.store.Advisor(), cfg.Client.TokenTTL, current.logger)

	out := cmd.OutOrStdout()
	return feed.Run(cmd.Context(), func(msg *websocket.Message) {
		current.cache.HandleFeedMessage(msg)

		var p websocket.RowChangePayload
		if err := msg.UnmarshalPayload(&p); err != nil {
			fmt.Fprintf(out, "%s\n", msg.Type)
			return
		}
		fmt.Fprintf(out, "%s\t%s\t#%d\t%s\t%s\n", msg.Type, p.VentureName, p.AssessmentNumber, p.AdvisorName, p.RowID)
	})
}
