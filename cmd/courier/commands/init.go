package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"courier/internal/crypto"
	"courier/internal/domain"
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Generate identity keys and store them securely",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			if err := requireUsername(); err != nil {
				return err
			}
			_, err := wire.Bundles.EnsureLocalBundle(cmd.Context(), passphrase,
				domain.UserID(username), wire.Device)
			if err != nil {
				return err
			}
			id, err := wire.Bundles.Identity()
			if err != nil {
				return err
			}
			fmt.Printf("Identity created.\nFingerprint: %s\n", crypto.Fingerprint(id.XPub[:]))
			return nil
		},
	}
}
