// Package app wires the concierge service together: configuration, Genkit,
// the database pool, stores, tools, and the agent. cmd/ calls Setup and gets
// back a ready App.
package app

import (
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/selldesk/concierge/internal/agent"
	"github.com/selldesk/concierge/internal/catalog"
	"github.com/selldesk/concierge/internal/config"
	"github.com/selldesk/concierge/internal/conversation"
	"github.com/selldesk/concierge/internal/log"
)

// App holds the initialized application components.
// Call Close() to release resources.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	DBPool   *pgxpool.Pool

	Catalog       *catalog.Store
	Conversations *conversation.PostgresStore
	Agent         *agent.Agent
}

// Close releases all resources held by the App.
func (a *App) Close() error {
	if a.DBPool != nil {
		a.DBPool.Close()
		a.Logger.Info("database pool closed")
	}
	return nil
}
