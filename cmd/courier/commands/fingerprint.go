package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"courier/internal/crypto"
	"courier/internal/domain"
)

func fingerprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint",
		Short: "Print identity fingerprint",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			if err := requireUsername(); err != nil {
				return err
			}
			if _, err := wire.Bundles.EnsureLocalBundle(cmd.Context(), passphrase,
				domain.UserID(username), wire.Device); err != nil {
				return err
			}
			id, err := wire.Bundles.Identity()
			if err != nil {
				return err
			}
			fmt.Printf("Fingerprint: %s\n", crypto.Fingerprint(id.XPub[:]))
			return nil
		},
	}
}
