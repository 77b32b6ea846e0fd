package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"courier/internal/domain"
)

func registerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Publish your key bundle to the relay",
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
			bundle, err := wire.Bundles.EnsureLocalBundle(cmd.Context(), passphrase,
				domain.UserID(username), wire.Device)
			if err != nil {
				return err
			}
			if err := wire.Bundles.Publish(cmd.Context(), bundle); err != nil {
				return err
			}
			fmt.Println("Registered key bundle with relay")
			return nil
		},
	}
}
