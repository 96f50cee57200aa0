package channelstore

import (
	"context"
	"errors"

	"github.com/staykit/channel-sync/pkg/channel"
)

// ErrConnectionNotFound is returned when a connection lookup finds no
// matching record.
var ErrConnectionNotFound = errors.New("channel connection not found")

// ConnectionStore defines channel connection persistence operations.
type ConnectionStore interface {
	CreateConnection(ctx context.Context, conn *channel.Connection) error
	GetConnection(ctx context.Context, id string) (*channel.Connection, error)
	ListConnections(ctx context.Context) ([]*channel.Connection, error)
	// ListPropertyConnections returns all connections for one property.
	ListPropertyConnections(ctx context.Context, propertyID string) ([]*channel.Connection, error)
	UpdateConnectionStatus(ctx context.Context, id string, status channel.ConnectionStatus) error
	TouchLastSync(ctx context.Context, id string) error
}

// SyncLogStore appends and queries the sync audit log.
type SyncLogStore interface {
	AppendSyncLog(ctx context.Context, entry *channel.SyncLogEntry) error
	// ListSyncLog returns the most recent entries for a connection,
	// newest first, at most limit.
	ListSyncLog(ctx context.Context, connectionID string, limit int) ([]*channel.SyncLogEntry, error)
}

// DeadLetterStore retains abandoned sync tasks for manual intervention.
type DeadLetterStore interface {
	AddDeadLetter(ctx context.Context, dl *channel.DeadLetter) error
	ListDeadLetters(ctx context.Context, limit int) ([]*channel.DeadLetter, error)
}

// Store combines all channel persistence.
type Store interface {
	ConnectionStore
	SyncLogStore
	DeadLetterStore
}
