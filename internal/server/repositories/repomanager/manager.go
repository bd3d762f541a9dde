// Package repomanager hands out repositories bound to either the base
// database handle or a transaction, and owns schema migrations.
package repomanager

import (
	"context"

	"github.com/dmitrijs2005/channelhub/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(ctx context.Context) error
	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
	Users() users.Repository
	// WithTx runs fn with repositories that share one transaction; the
	// transaction commits when fn returns nil.
	WithTx(ctx context.Context, fn func(ctx context.Context, users users.Repository) error) error
}
