package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"courier/internal/domain"
	"courier/internal/services/thread"
)

// open <peer>: interactive conversation. Lines typed send messages,
// "/file <path>" sends a file, "/quit" leaves.
func openCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open <peer>",
		Short: "Open a live conversation with a peer",
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

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			if _, err := wire.Bundles.EnsureLocalBundle(ctx, passphrase, wire.Self, wire.Device); err != nil {
				return err
			}

			view, err := thread.Open(ctx, thread.Deps{
				Self:     wire.Self,
				Device:   wire.Device,
				Peer:     peer,
				Sessions: wire.Sessions,
				Cipher:   wire.Cipher,
				Codec:    wire.Attachments,
				Channel:  wire.Channel,
				Relay:    wire.Relay,
				Log:      wire.Log,
			}, domain.DirectConversation(wire.Self, peer))
			if err != nil {
				return err
			}

			go renderLoop(view)

			fmt.Printf("conversation with %s. /file <path> sends a file, /quit leaves.\n", peer)
			in := bufio.NewScanner(os.Stdin)
			for in.Scan() {
				line := strings.TrimSpace(in.Text())
				switch {
				case line == "":
				case line == "/quit":
					return nil
				case strings.HasPrefix(line, "/file "):
					path := strings.TrimSpace(strings.TrimPrefix(line, "/file "))
					content, err := os.ReadFile(path)
					if err != nil {
						fmt.Println("error:", err)
						continue
					}
					view.Commands() <- thread.SendFile{Content: content, Mime: "application/octet-stream"}
				default:
					view.Commands() <- thread.SendText{Body: line}
				}
			}
			return in.Err()
		},
	}
}

// renderLoop prints each snapshot as a full refresh of the tail of the
// conversation.
func renderLoop(view *thread.View) {
	for u := range view.Updates() {
		fmt.Println("----")
		for _, item := range u.Items {
			ts := time.UnixMilli(item.Envelope.CreatedAt).Format("15:04:05")
			status := ""
			if item.Envelope.Status != "" {
				status = " [" + string(item.Envelope.Status) + "]"
			}
			text := item.Text
			if item.Envelope.AttachmentURL != "" {
				text += " (attachment)"
			}
			fmt.Printf("%s %-12s %s%s\n", ts, item.Envelope.SenderUserID, text, status)
		}
		if u.PeerTyping {
			fmt.Println("peer is typing...")
		}
	}
}
