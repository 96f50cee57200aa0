package channel

import "time"

// ConnectionStatus is the operational status of a channel connection.
type ConnectionStatus string

const (
	ConnectionPending      ConnectionStatus = "pending"
	ConnectionActive       ConnectionStatus = "active"
	ConnectionPaused       ConnectionStatus = "paused"
	ConnectionError        ConnectionStatus = "error"
	ConnectionDisconnected ConnectionStatus = "disconnected"
)

// Connection links one property to one external channel. SyncEnabled gates
// outbound pushes; paused and disconnected connections receive no traffic.
type Connection struct {
	ID            string
	PropertyID    string
	ChannelType   string
	CredentialRef string
	SyncEnabled   bool
	Status        ConnectionStatus
	LastSyncAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Syncable reports whether the connection should receive outbound pushes.
func (c *Connection) Syncable() bool {
	return c.SyncEnabled &&
		c.Status != ConnectionPaused &&
		c.Status != ConnectionDisconnected
}

// Direction of a sync operation relative to this platform.
type Direction string

const (
	DirectionOutbound Direction = "outbound"
	DirectionInbound  Direction = "inbound"
)

// SyncType classifies what a sync operation carried.
type SyncType string

const (
	SyncTypeBooking        SyncType = "booking"
	SyncTypeAvailability   SyncType = "availability"
	SyncTypeReconciliation SyncType = "reconciliation"
)

// SyncStatus is the outcome of a sync attempt or run.
type SyncStatus string

const (
	SyncStarted        SyncStatus = "started"
	SyncSuccess        SyncStatus = "success"
	SyncPartialSuccess SyncStatus = "partial_success"
	SyncFailure        SyncStatus = "failure"
)

// SyncLogEntry is one append-only audit record of a sync attempt or a
// reconciliation run.
type SyncLogEntry struct {
	ID               string
	ConnectionID     string
	Direction        Direction
	SyncType         SyncType
	Status           SyncStatus
	RecordsProcessed int
	RecordsCreated   int
	RecordsUpdated   int
	RecordsFailed    int
	ErrorDetail      string
	StartedAt        time.Time
	CompletedAt      *time.Time
}

// DeadLetter is a sync task abandoned after exhausting its retry budget,
// retained for manual intervention.
type DeadLetter struct {
	ID           string
	ConnectionID string
	Payload      []byte
	Attempts     int
	LastError    string
	CreatedAt    time.Time
}
