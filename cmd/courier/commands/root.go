package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"courier/internal/app"
)

var (
	home       string
	passphrase string
	relayURL   string
	username   string

	wire *app.Wire
)

func Execute() error {
	root := &cobra.Command{
		Use:   "courier",
		Short: "End-to-end encrypted messaging CLI",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if home == "" {
				dir, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				home = filepath.Join(dir, ".courier")
			}
			if err := os.MkdirAll(home, 0o700); err != nil {
				return err
			}

			var err error
			wire, err = app.NewWire(app.Config{
				Home:     home,
				Username: username,
				RelayURL: relayURL,
			})
			return err
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "config dir (default ~/.courier)")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase to protect keys")
	root.PersistentFlags().StringVar(&relayURL, "relay", "", "relay base URL (e.g. http://127.0.0.1:8484)")
	root.PersistentFlags().StringVarP(&username, "username", "u", "", "your user id on the relay")

	root.AddCommand(initCmd(), fingerprintCmd(), registerCmd(),
		sendCmd(), sendFileCmd(), historyCmd(), openCmd())
	return root.Execute()
}

func requirePassphrase() error {
	if passphrase == "" {
		return fmt.Errorf("passphrase required (-p)")
	}
	return nil
}

func requireUsername() error {
	if username == "" {
		return fmt.Errorf("username required (-u)")
	}
	return nil
}

func requireRelay() error {
	if relayURL == "" {
		return fmt.Errorf("no relay configured. use --relay")
	}
	return nil
}
