package bookingstore

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/staykit/channel-sync/pkg/booking"
	"github.com/staykit/channel-sync/pkg/ledger"
)

// BookingDao is a data access object that maps directly to the 'bookings'
// table in PostgreSQL. Channel-imported bookings are deduplicated by a
// partial unique index on (source, channel_booking_id); see
// pkg/migrations/coredb.
type BookingDao struct {
	bun.BaseModel    `bun:"table:bookings,alias:b"`
	ID               string    `bun:"id,pk,type:uuid"`
	PropertyID       string    `bun:"property_id,notnull,type:varchar(64)"`
	GuestName        string    `bun:"guest_name,notnull,type:varchar(128)"`
	StartDate        time.Time `bun:"start_date,notnull,type:date"`
	EndDate          time.Time `bun:"end_date,notnull,type:date"`
	Status           string    `bun:"status,notnull,type:varchar(16)"`
	Source           string    `bun:"source,notnull,type:varchar(32)"`
	ChannelBookingID *string   `bun:"channel_booking_id,type:varchar(128)"`
	IntervalID       string    `bun:"interval_id,notnull,type:uuid"`
	CreatedAt        time.Time `bun:"created_at,nullzero,default:current_timestamp"`
	UpdatedAt        time.Time `bun:"updated_at,nullzero,default:current_timestamp"`
}

// toBookingDao converts a booking.Booking to BookingDao.
func toBookingDao(b *booking.Booking) *BookingDao {
	dao := &BookingDao{
		ID:         b.ID,
		PropertyID: b.PropertyID,
		GuestName:  b.GuestName,
		StartDate:  b.Start,
		EndDate:    b.End,
		Status:     string(b.Status),
		Source:     b.Source,
		IntervalID: b.IntervalID,
	}
	if b.ChannelBookingID != "" {
		dao.ChannelBookingID = &b.ChannelBookingID
	}
	return dao
}

// toBooking converts a BookingDao to booking.Booking.
func toBooking(dao *BookingDao) *booking.Booking {
	b := &booking.Booking{
		ID:         dao.ID,
		PropertyID: dao.PropertyID,
		GuestName:  dao.GuestName,
		Start:      ledger.NormalizeDate(dao.StartDate),
		End:        ledger.NormalizeDate(dao.EndDate),
		Status:     booking.Status(dao.Status),
		Source:     dao.Source,
		IntervalID: dao.IntervalID,
		CreatedAt:  dao.CreatedAt,
		UpdatedAt:  dao.UpdatedAt,
	}
	if dao.ChannelBookingID != nil {
		b.ChannelBookingID = *dao.ChannelBookingID
	}
	return b
}

// BlockDao is a data access object that maps directly to the 'blocks' table
// in PostgreSQL.
type BlockDao struct {
	bun.BaseModel `bun:"table:blocks,alias:blk"`
	ID            string     `bun:"id,pk,type:uuid"`
	PropertyID    string     `bun:"property_id,notnull,type:varchar(64)"`
	StartDate     time.Time  `bun:"start_date,notnull,type:date"`
	EndDate       time.Time  `bun:"end_date,notnull,type:date"`
	Reason        *string    `bun:"reason,type:varchar(256)"`
	IntervalID    string     `bun:"interval_id,notnull,type:uuid"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,default:current_timestamp"`
	RemovedAt     *time.Time `bun:"removed_at"`
}

// toBlockDao converts a booking.Block to BlockDao.
func toBlockDao(b *booking.Block) *BlockDao {
	dao := &BlockDao{
		ID:         b.ID,
		PropertyID: b.PropertyID,
		StartDate:  b.Start,
		EndDate:    b.End,
		IntervalID: b.IntervalID,
		RemovedAt:  b.RemovedAt,
	}
	if b.Reason != "" {
		dao.Reason = &b.Reason
	}
	return dao
}

// toBlock converts a BlockDao to booking.Block.
func toBlock(dao *BlockDao) *booking.Block {
	b := &booking.Block{
		ID:         dao.ID,
		PropertyID: dao.PropertyID,
		Start:      ledger.NormalizeDate(dao.StartDate),
		End:        ledger.NormalizeDate(dao.EndDate),
		IntervalID: dao.IntervalID,
		CreatedAt:  dao.CreatedAt,
		RemovedAt:  dao.RemovedAt,
	}
	if dao.Reason != nil {
		b.Reason = *dao.Reason
	}
	return b
}
