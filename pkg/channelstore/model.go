package channelstore

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/staykit/channel-sync/pkg/channel"
)

// ConnectionDao is a data access object that maps directly to the
// 'channel_connections' table in PostgreSQL.
type ConnectionDao struct {
	bun.BaseModel `bun:"table:channel_connections,alias:cc"`
	ID            string     `bun:"id,pk,type:uuid"`
	PropertyID    string     `bun:"property_id,notnull,type:varchar(64)"`
	ChannelType   string     `bun:"channel_type,notnull,type:varchar(32)"`
	CredentialRef string     `bun:"credential_ref,notnull,type:varchar(255)"`
	SyncEnabled   bool       `bun:"sync_enabled,notnull,default:true"`
	Status        string     `bun:"status,notnull,type:varchar(16),default:'pending'"`
	LastSyncAt    *time.Time `bun:"last_sync_at"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,default:current_timestamp"`
	UpdatedAt     time.Time  `bun:"updated_at,nullzero,default:current_timestamp"`
}

func toConnectionDao(conn *channel.Connection) *ConnectionDao {
	return &ConnectionDao{
		ID:            conn.ID,
		PropertyID:    conn.PropertyID,
		ChannelType:   conn.ChannelType,
		CredentialRef: conn.CredentialRef,
		SyncEnabled:   conn.SyncEnabled,
		Status:        string(conn.Status),
		LastSyncAt:    conn.LastSyncAt,
	}
}

func toConnection(dao *ConnectionDao) *channel.Connection {
	return &channel.Connection{
		ID:            dao.ID,
		PropertyID:    dao.PropertyID,
		ChannelType:   dao.ChannelType,
		CredentialRef: dao.CredentialRef,
		SyncEnabled:   dao.SyncEnabled,
		Status:        channel.ConnectionStatus(dao.Status),
		LastSyncAt:    dao.LastSyncAt,
		CreatedAt:     dao.CreatedAt,
		UpdatedAt:     dao.UpdatedAt,
	}
}

// SyncLogDao is a data access object that maps directly to the
// 'sync_log_entries' table in PostgreSQL. Rows are append-only.
type SyncLogDao struct {
	bun.BaseModel    `bun:"table:sync_log_entries,alias:sl"`
	ID               string     `bun:"id,pk,type:uuid"`
	ConnectionID     string     `bun:"connection_id,notnull,type:uuid"`
	Direction        string     `bun:"direction,notnull,type:varchar(16)"`
	SyncType         string     `bun:"sync_type,notnull,type:varchar(32)"`
	Status           string     `bun:"status,notnull,type:varchar(16)"`
	RecordsProcessed int        `bun:"records_processed,notnull,default:0"`
	RecordsCreated   int        `bun:"records_created,notnull,default:0"`
	RecordsUpdated   int        `bun:"records_updated,notnull,default:0"`
	RecordsFailed    int        `bun:"records_failed,notnull,default:0"`
	ErrorDetail      *string    `bun:"error_detail,type:text"`
	StartedAt        time.Time  `bun:"started_at,notnull"`
	CompletedAt      *time.Time `bun:"completed_at"`
}

func toSyncLogDao(entry *channel.SyncLogEntry) *SyncLogDao {
	dao := &SyncLogDao{
		ID:               entry.ID,
		ConnectionID:     entry.ConnectionID,
		Direction:        string(entry.Direction),
		SyncType:         string(entry.SyncType),
		Status:           string(entry.Status),
		RecordsProcessed: entry.RecordsProcessed,
		RecordsCreated:   entry.RecordsCreated,
		RecordsUpdated:   entry.RecordsUpdated,
		RecordsFailed:    entry.RecordsFailed,
		StartedAt:        entry.StartedAt,
		CompletedAt:      entry.CompletedAt,
	}
	if entry.ErrorDetail != "" {
		dao.ErrorDetail = &entry.ErrorDetail
	}
	return dao
}

func toSyncLogEntry(dao *SyncLogDao) *channel.SyncLogEntry {
	entry := &channel.SyncLogEntry{
		ID:               dao.ID,
		ConnectionID:     dao.ConnectionID,
		Direction:        channel.Direction(dao.Direction),
		SyncType:         channel.SyncType(dao.SyncType),
		Status:           channel.SyncStatus(dao.Status),
		RecordsProcessed: dao.RecordsProcessed,
		RecordsCreated:   dao.RecordsCreated,
		RecordsUpdated:   dao.RecordsUpdated,
		RecordsFailed:    dao.RecordsFailed,
		StartedAt:        dao.StartedAt,
		CompletedAt:      dao.CompletedAt,
	}
	if dao.ErrorDetail != nil {
		entry.ErrorDetail = *dao.ErrorDetail
	}
	return entry
}

// DeadLetterDao is a data access object that maps directly to the
// 'dead_letters' table in PostgreSQL.
type DeadLetterDao struct {
	bun.BaseModel `bun:"table:dead_letters,alias:dl"`
	ID            string    `bun:"id,pk,type:uuid"`
	ConnectionID  string    `bun:"connection_id,notnull,type:uuid"`
	Payload       []byte    `bun:"payload,notnull,type:jsonb"`
	Attempts      int       `bun:"attempts,notnull"`
	LastError     string    `bun:"last_error,notnull,type:text"`
	CreatedAt     time.Time `bun:"created_at,nullzero,default:current_timestamp"`
}

func toDeadLetterDao(dl *channel.DeadLetter) *DeadLetterDao {
	return &DeadLetterDao{
		ID:           dl.ID,
		ConnectionID: dl.ConnectionID,
		Payload:      dl.Payload,
		Attempts:     dl.Attempts,
		LastError:    dl.LastError,
	}
}

func toDeadLetter(dao *DeadLetterDao) *channel.DeadLetter {
	return &channel.DeadLetter{
		ID:           dao.ID,
		ConnectionID: dao.ConnectionID,
		Payload:      dao.Payload,
		Attempts:     dao.Attempts,
		LastError:    dao.LastError,
		CreatedAt:    dao.CreatedAt,
	}
}
