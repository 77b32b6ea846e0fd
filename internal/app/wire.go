package app

import (
	"net/http"

	"go.uber.org/zap"

	"courier/internal/domain"
	"courier/internal/relay"
	attachmentsvc "courier/internal/services/attachment"
	ciphersvc "courier/internal/services/cipher"
	deliverysvc "courier/internal/services/delivery"
	keybundlesvc "courier/internal/services/keybundle"
	sessionsvc "courier/internal/services/session"
	"courier/internal/store"
)

// Wire bundles all stores, services, and clients for the CLI.
type Wire struct {
	Self   domain.UserID
	Device domain.DeviceID

	Devices     domain.DeviceStore
	PreKeys     domain.PreKeyStore
	Bundles     domain.KeyBundleService
	Sessions    domain.SessionManager
	Cipher      domain.MessageCipher
	Attachments domain.AttachmentCodec
	Channel     domain.DeliveryChannel
	Relay       domain.RelayClient
	Log         *zap.Logger
}

// NewWire constructs the dependency graph from cfg.
func NewWire(cfg Config) (*Wire, error) {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	httpClient := cfg.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	device := cfg.Device
	if device == "" {
		device = "default"
	}
	self := domain.UserID(cfg.Username)

	// File-based stores
	deviceStore := store.NewDeviceFileStore(cfg.Home)
	prekeyStore := store.NewPreKeyFileStore(cfg.Home)
	bundleStore := store.NewBundleFileStore(cfg.Home)

	// Relay client (uses provided HTTP client)
	rc := relay.NewHTTP(cfg.RelayURL, httpClient)

	// High-level services
	bundles := keybundlesvc.New(deviceStore, prekeyStore, bundleStore, rc)
	sessions := sessionsvc.NewManager(bundles, prekeyStore, log)
	cipher := ciphersvc.New(sessions, log)
	attachments := attachmentsvc.New(self, sessions, log)
	channel := deliverysvc.New(rc, log)

	return &Wire{
		Self:        self,
		Device:      domain.DeviceID(device),
		Devices:     deviceStore,
		PreKeys:     prekeyStore,
		Bundles:     bundles,
		Sessions:    sessions,
		Cipher:      cipher,
		Attachments: attachments,
		Channel:     channel,
		Relay:       rc,
		Log:         log,
	}, nil
}
