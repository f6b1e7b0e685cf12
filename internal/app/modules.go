package app

import (
	"strings"

	"github.com/nfrund/chatter/internal/module"
	"github.com/nfrund/chatter/internal/modules/chat"
	"github.com/nfrund/chatter/internal/modules/realtime"
)

// NewModules creates and returns the list of all active modules for the application.
// This is the single source of truth for which features are enabled.
func NewModules(deps *Dependencies) []module.Module {
	return []module.Module{
		chat.New(chatDeps(deps)),
		realtime.New(realtimeDeps(deps)),
	}
}

// chatDeps creates the dependency struct for the chat module.
func chatDeps(deps *Dependencies) chat.Dependencies {
	return chat.Dependencies{
		HTTPRateLimit: deps.Config.HTTPRateLimit,
	}
}

// realtimeDeps creates the dependency struct for the realtime module.
func realtimeDeps(deps *Dependencies) realtime.Dependencies {
	var origins []string
	if deps.Config.AllowedOrigins != "" {
		origins = strings.Split(deps.Config.AllowedOrigins, ",")
	}
	return realtime.Dependencies{
		QueueSize:      deps.Config.SendBuffer,
		OriginPatterns: origins,
	}
}
