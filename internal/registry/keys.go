package registry

import (
	"github.com/nfrund/chatter/internal/broadcast"
	"github.com/nfrund/chatter/internal/chat"
	"github.com/nfrund/chatter/internal/identity"
	"github.com/nfrund/chatter/internal/metrics"
	"github.com/nfrund/chatter/internal/presence"
	"github.com/nfrund/chatter/internal/pubsub"
	"github.com/nfrund/chatter/internal/session"
)

// Service keys shared between modules.
var (
	PubSubKey      Key[pubsub.PubSub]         = "core.pubsub"
	OracleKey      Key[identity.Oracle]       = "core.identity"
	MetricsKey     Key[*metrics.Metrics]      = "core.metrics"
	PresenceKey    Key[*presence.Registry]    = "core.presence"
	MirrorKey      Key[*presence.RedisMirror] = "core.presence.mirror"
	RouterKey      Key[*broadcast.Router]     = "core.router"
	CoordinatorKey Key[*session.Coordinator]  = "core.sessions"
	ChatServiceKey Key[*chat.Service]         = "chat.service"
)
