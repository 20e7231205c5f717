package app

import (
	"context"
	"fmt"
	"log"

	"stridelink/internal/api"
	"stridelink/internal/chat"
	"stridelink/internal/config"
	"stridelink/internal/store"
	"stridelink/internal/transport"
	"stridelink/pkg/types"
)

// Application wires the client engine together. Initialization order:
// Store → API client → Channel manager. Chat controllers are created
// per screen, not here.
type Application struct {
	config  *config.Config
	store   *store.Store
	client  *api.Client
	channel *transport.Manager

	self *types.Credentials
}

// NewApplication builds all shared components from configuration.
func NewApplication(cfg *config.Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	client, err := api.NewClient(api.Options{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
	})
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to build api client: %w", err)
	}

	// A saved login primes the token; expired tokens surface as
	// ErrUnauthorized on first use and the user logs in again.
	var self *types.Credentials
	if creds, err := st.Credentials(context.Background()); err == nil {
		client.SetToken(creds.Token)
		self = creds
	}

	channel := transport.NewManager(transport.Options{
		BaseURL:           cfg.Channel.BaseURL,
		HandshakeTimeout:  cfg.Channel.HandshakeTimeout,
		WriteTimeout:      cfg.Channel.WriteTimeout,
		ReconnectAttempts: cfg.Channel.ReconnectAttempts,
		ReconnectDelay:    cfg.Channel.ReconnectDelay,
	})

	return &Application{
		config:  cfg,
		store:   st,
		client:  client,
		channel: channel,
		self:    self,
	}, nil
}

// Close tears down the live channel and the local store.
func (app *Application) Close() error {
	if err := app.channel.Teardown(); err != nil {
		log.Printf("app: channel teardown: %v", err)
	}
	if err := app.store.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	return nil
}

// Client returns the shared REST client.
func (app *Application) Client() *api.Client {
	return app.client
}

// Store returns the local database.
func (app *Application) Store() *store.Store {
	return app.store
}

// Channel returns the shared live-channel manager.
func (app *Application) Channel() *transport.Manager {
	return app.channel
}

// Self returns the logged-in user, or nil before login.
func (app *Application) Self() *types.Credentials {
	return app.self
}

// SetSelf records a fresh login for this process and persists it.
func (app *Application) SetSelf(ctx context.Context, creds *types.Credentials) error {
	app.self = creds
	app.client.SetToken(creds.Token)
	if err := app.store.SaveCredentials(ctx, *creds); err != nil {
		return fmt.Errorf("failed to persist login: %w", err)
	}
	return nil
}

// Logout drops the saved login and the in-memory token.
func (app *Application) Logout(ctx context.Context) error {
	app.self = nil
	app.client.SetToken("")
	return app.store.ClearCredentials(ctx)
}

// NewChatController builds a controller for one chat screen, bound to
// the shared channel and REST client.
func (app *Application) NewChatController(hooks chat.ScreenHooks) (*chat.Controller, error) {
	if app.self == nil {
		return nil, fmt.Errorf("not logged in")
	}
	return chat.NewController(chat.ControllerOptions{
		Channel:        &channelAdapter{m: app.channel},
		Backend:        app.client,
		Self:           *app.self,
		TypingThrottle: app.config.Typing.Throttle,
		TypingExpiry:   app.config.Typing.Expiry,
		Hooks:          hooks,
	}), nil
}
