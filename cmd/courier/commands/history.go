package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"courier/internal/domain"
	"courier/internal/services/thread"
)

// history <peer>: fetch and decrypt a conversation's stored envelopes.
func historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <peer>",
		Short: "Fetch and decrypt a conversation's history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			if err := requireUsername(); err != nil {
				return err
			}
			if err := requireRelay(); err != nil {
				return err
			}
			peer := domain.UserID(args[0])

			ctx := cmd.Context()
			if _, err := wire.Bundles.EnsureLocalBundle(ctx, passphrase, wire.Self, wire.Device); err != nil {
				return err
			}

			envelopes, err := wire.Channel.FetchHistory(ctx, domain.DirectConversation(wire.Self, peer))
			if err != nil {
				return err
			}
			for _, e := range envelopes {
				text := ""
				if e.CipherText != "" {
					pt, ok := wire.Cipher.DecryptText(e.SenderUserID, e.CipherText)
					if !ok {
						pt = thread.PlaceholderUndecryptable
					}
					text = pt
				}
				if e.AttachmentURL != "" {
					text += " [attachment " + e.AttachmentURL + "]"
				}
				ts := time.UnixMilli(e.CreatedAt).Format(time.DateTime)
				fmt.Printf("%s  %-12s %s\n", ts, e.SenderUserID, text)
			}
			return nil
		},
	}
}
