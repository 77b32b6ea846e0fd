package app

import (
	"net/http"

	"go.uber.org/zap"
)

// Config holds runtime wiring options for building the app.
type Config struct {
	Home     string       // config directory, e.g. $HOME/.courier
	Username string       // the local user id, as registered with the relay
	Device   string       // local device id; defaults to "default"
	RelayURL string       // relay base URL, e.g. http://127.0.0.1:8484
	HTTP     *http.Client // optional; defaults to http.DefaultClient
	Log      *zap.Logger  // optional; defaults to zap.NewNop
}
