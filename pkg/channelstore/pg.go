package channelstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/staykit/channel-sync/pkg/channel"
)

type pgStore struct {
	db *bun.DB
}

// NewStore creates a new postgres implementation of the channel store.
func NewStore(db *bun.DB) Store {
	return &pgStore{db: db}
}

func (s *pgStore) CreateConnection(ctx context.Context, conn *channel.Connection) error {
	_, err := s.db.NewInsert().
		Model(toConnectionDao(conn)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create connection: %w", err)
	}
	return nil
}

func (s *pgStore) GetConnection(ctx context.Context, id string) (*channel.Connection, error) {
	dao := new(ConnectionDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrConnectionNotFound
		}
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	return toConnection(dao), nil
}

func (s *pgStore) ListConnections(ctx context.Context) ([]*channel.Connection, error) {
	var daos []ConnectionDao
	err := s.db.NewSelect().
		Model(&daos).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}

	conns := make([]*channel.Connection, len(daos))
	for i := range daos {
		conns[i] = toConnection(&daos[i])
	}
	return conns, nil
}

func (s *pgStore) ListPropertyConnections(ctx context.Context, propertyID string) ([]*channel.Connection, error) {
	var daos []ConnectionDao
	err := s.db.NewSelect().
		Model(&daos).
		Where("property_id = ?", propertyID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list property connections: %w", err)
	}

	conns := make([]*channel.Connection, len(daos))
	for i := range daos {
		conns[i] = toConnection(&daos[i])
	}
	return conns, nil
}

func (s *pgStore) UpdateConnectionStatus(ctx context.Context, id string, status channel.ConnectionStatus) error {
	res, err := s.db.NewUpdate().
		Model((*ConnectionDao)(nil)).
		Set("status = ?", string(status)).
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update connection status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return ErrConnectionNotFound
	}
	return nil
}

func (s *pgStore) TouchLastSync(ctx context.Context, id string) error {
	_, err := s.db.NewUpdate().
		Model((*ConnectionDao)(nil)).
		Set("last_sync_at = NOW()").
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to touch last sync: %w", err)
	}
	return nil
}

func (s *pgStore) AppendSyncLog(ctx context.Context, entry *channel.SyncLogEntry) error {
	_, err := s.db.NewInsert().
		Model(toSyncLogDao(entry)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to append sync log: %w", err)
	}
	return nil
}

func (s *pgStore) ListSyncLog(ctx context.Context, connectionID string, limit int) ([]*channel.SyncLogEntry, error) {
	var daos []SyncLogDao
	err := s.db.NewSelect().
		Model(&daos).
		Where("connection_id = ?", connectionID).
		Order("started_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync log: %w", err)
	}

	entries := make([]*channel.SyncLogEntry, len(daos))
	for i := range daos {
		entries[i] = toSyncLogEntry(&daos[i])
	}
	return entries, nil
}

func (s *pgStore) AddDeadLetter(ctx context.Context, dl *channel.DeadLetter) error {
	_, err := s.db.NewInsert().
		Model(toDeadLetterDao(dl)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to add dead letter: %w", err)
	}
	return nil
}

func (s *pgStore) ListDeadLetters(ctx context.Context, limit int) ([]*channel.DeadLetter, error) {
	var daos []DeadLetterDao
	err := s.db.NewSelect().
		Model(&daos).
		Order("created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}

	letters := make([]*channel.DeadLetter, len(daos))
	for i := range daos {
		letters[i] = toDeadLetter(&daos[i])
	}
	return letters, nil
}
