package app

import (
	"context"

	"stridelink/internal/chat"
	"stridelink/internal/transport"
	"stridelink/pkg/types"
)

// channelAdapter narrows *transport.Manager to the chat.Channel
// interface; the subscription handle types differ only in name.
type channelAdapter struct {
	m *transport.Manager
}

func (a *channelAdapter) EnsureConnected(ctx context.Context) error {
	return a.m.EnsureConnected(ctx)
}

func (a *channelAdapter) Emit(event string, payload interface{}) error {
	return a.m.Emit(event, payload)
}

func (a *channelAdapter) Subscribe(event string, fn transport.Handler) chat.Registration {
	return a.m.Subscribe(event, fn)
}

func (a *channelAdapter) OnStateChange(fn transport.StateHandler) chat.Registration {
	return a.m.OnStateChange(fn)
}

func (a *channelAdapter) State() types.ConnectionState {
	return a.m.State()
}
