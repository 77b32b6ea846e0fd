package commands

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"courier/internal/domain"
)

// send <peer> <message>: encrypt and send one message to <peer>.
func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <peer> <message>",
		Short: "Encrypt and send a message to a peer",
		Args:  cobra.ExactArgs(2),
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
			body := args[1]

			ctx := cmd.Context()
			if _, err := wire.Bundles.EnsureLocalBundle(ctx, passphrase, wire.Self, wire.Device); err != nil {
				return err
			}

			sess, err := wire.Sessions.GetOrCreate(ctx, peer)
			if err != nil {
				return err
			}
			if sess == nil {
				fmt.Println("warning: no secure session with peer, sending degraded")
			}
			cipherText, err := wire.Cipher.EncryptText(sess, body)
			if err != nil {
				return err
			}

			confirmed, err := wire.Relay.SendMessage(ctx, domain.SendRequest{
				ConversationID: domain.DirectConversation(wire.Self, peer),
				SenderUserID:   wire.Self,
				SenderDeviceID: wire.Device,
				MessageID:      domain.MessageID(uuid.NewString()),
				CipherText:     cipherText,
			})
			if err != nil {
				return err
			}
			fmt.Printf("sent (%s)\n", confirmed.ID)
			return nil
		},
	}
}
