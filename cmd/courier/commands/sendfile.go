package commands

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"courier/internal/domain"
)

// sendfile <peer> <path>: encrypt a file once, upload the blob, and send
// the envelope referencing it.
func sendFileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sendfile <peer> <path>",
		Short: "Encrypt and send a file to a peer",
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
			path := args[1]

			content, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			mimeType := mime.TypeByExtension(filepath.Ext(path))
			if mimeType == "" {
				mimeType = http.DetectContentType(content)
			}

			ctx := cmd.Context()
			if _, err := wire.Bundles.EnsureLocalBundle(ctx, passphrase, wire.Self, wire.Device); err != nil {
				return err
			}

			blob, meta, err := wire.Attachments.Encrypt(ctx, content, mimeType,
				[]domain.UserID{wire.Self, peer})
			if err != nil {
				return err
			}
			url, err := wire.Relay.UploadAttachment(ctx, blob, meta)
			if err != nil {
				return err
			}

			sess, err := wire.Sessions.GetOrCreate(ctx, peer)
			if err != nil {
				return err
			}
			cipherText, err := wire.Cipher.EncryptText(sess, "")
			if err != nil {
				return err
			}

			confirmed, err := wire.Relay.SendMessage(ctx, domain.SendRequest{
				ConversationID: domain.DirectConversation(wire.Self, peer),
				SenderUserID:   wire.Self,
				SenderDeviceID: wire.Device,
				MessageID:      domain.MessageID(uuid.NewString()),
				CipherText:     cipherText,
				AttachmentURL:  url,
				AttachmentMeta: &meta,
			})
			if err != nil {
				return err
			}
			fmt.Printf("sent %s, %d bytes (%s)\n", filepath.Base(path), len(content), confirmed.ID)
			return nil
		},
	}
}
