// Package cmd provides common initialization for the control-plane binary.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hookplane/hookplane/pkg/persistence"
	"github.com/hookplane/hookplane/pkg/persistence/file"
	"github.com/hookplane/hookplane/pkg/persistence/postgresql"
	redispersistence "github.com/hookplane/hookplane/pkg/persistence/redis"
)

// NewPersistence creates the persistence layer based on the database URL
// scheme. Unknown schemes fall back to file persistence.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch parseScheme(databaseURL) {
	case "postgres", "postgresql":
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to create PostgreSQL persistence: %w", err))
		}

		return p
	case "redis":
		p, err := redispersistence.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to create Redis persistence: %w", err))
		}

		return p
	default:
		return file.NewPersistence(databaseURL)
	}
}

func parseScheme(databaseURL string) string {
	parts := strings.SplitN(databaseURL, "://", 2)
	if len(parts) < 2 {
		return "file"
	}

	return parts[0]
}
