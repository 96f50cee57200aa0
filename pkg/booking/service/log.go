package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/staykit/channel-sync/pkg/booking"
	"github.com/staykit/channel-sync/pkg/channel"
	"github.com/staykit/channel-sync/pkg/ledger"
)

const serviceName = "BookingService"

// logService wraps Service with automatic logging of all method calls
type logService struct {
	svc    Service
	logger *zap.Logger
}

// NewLog creates a logging decorator for the booking Service.
// It logs method entry/exit, duration and errors.
func NewLog(svc Service, logger *zap.Logger) Service {
	return &logService{
		svc:    svc,
		logger: logger,
	}
}

func (ls *logService) logCall(method string, start time.Time, err error, fields ...zap.Field) {
	fields = append(fields,
		zap.String("service", serviceName),
		zap.String("method", method),
		zap.Duration("duration", time.Since(start)),
	)
	if err != nil {
		ls.logger.Error(method+" failed", append(fields, zap.Error(err))...)
		return
	}
	ls.logger.Info(method+" completed", fields...)
}

func (ls *logService) CreateBooking(ctx context.Context, req *booking.CreateBookingRequest) (b *booking.Booking, err error) {
	start := time.Now()
	defer func() {
		fields := []zap.Field{
			zap.String("property_id", req.PropertyID),
			zap.Time("start_date", req.Start),
			zap.Time("end_date", req.End),
		}
		if b != nil {
			fields = append(fields, zap.String("booking_id", b.ID))
		}
		ls.logCall("CreateBooking", start, err, fields...)
	}()
	return ls.svc.CreateBooking(ctx, req)
}

func (ls *logService) CancelBooking(ctx context.Context, id string) (b *booking.Booking, err error) {
	start := time.Now()
	defer func() {
		ls.logCall("CancelBooking", start, err, zap.String("booking_id", id))
	}()
	return ls.svc.CancelBooking(ctx, id)
}

func (ls *logService) Transition(ctx context.Context, id string, next booking.Status) (b *booking.Booking, err error) {
	start := time.Now()
	defer func() {
		ls.logCall("Transition", start, err,
			zap.String("booking_id", id),
			zap.String("next_status", string(next)))
	}()
	return ls.svc.Transition(ctx, id, next)
}

func (ls *logService) CreateBlock(ctx context.Context, req *booking.CreateBlockRequest) (blk *booking.Block, err error) {
	start := time.Now()
	defer func() {
		fields := []zap.Field{
			zap.String("property_id", req.PropertyID),
			zap.Time("start_date", req.Start),
			zap.Time("end_date", req.End),
		}
		if blk != nil {
			fields = append(fields, zap.String("block_id", blk.ID))
		}
		ls.logCall("CreateBlock", start, err, fields...)
	}()
	return ls.svc.CreateBlock(ctx, req)
}

func (ls *logService) RemoveBlock(ctx context.Context, id string) (blk *booking.Block, err error) {
	start := time.Now()
	defer func() {
		ls.logCall("RemoveBlock", start, err, zap.String("block_id", id))
	}()
	return ls.svc.RemoveBlock(ctx, id)
}

func (ls *logService) QueryAvailability(ctx context.Context, propertyID string, from, to time.Time) (records []ledger.IntervalRecord, err error) {
	start := time.Now()
	defer func() {
		ls.logCall("QueryAvailability", start, err,
			zap.String("property_id", propertyID),
			zap.Int("records", len(records)))
	}()
	return ls.svc.QueryAvailability(ctx, propertyID, from, to)
}

func (ls *logService) ImportChannelBooking(ctx context.Context, origin string, ext *channel.ExternalBooking) (b *booking.Booking, err error) {
	start := time.Now()
	defer func() {
		fields := []zap.Field{
			zap.String("origin", origin),
			zap.String("channel_booking_id", ext.ChannelBookingID),
			zap.String("property_id", ext.PropertyID),
		}
		if b != nil {
			fields = append(fields, zap.String("booking_id", b.ID))
		}
		ls.logCall("ImportChannelBooking", start, err, fields...)
	}()
	return ls.svc.ImportChannelBooking(ctx, origin, ext)
}

func (ls *logService) CancelChannelBooking(ctx context.Context, origin, channelBookingID string) (b *booking.Booking, err error) {
	start := time.Now()
	defer func() {
		ls.logCall("CancelChannelBooking", start, err,
			zap.String("origin", origin),
			zap.String("channel_booking_id", channelBookingID))
	}()
	return ls.svc.CancelChannelBooking(ctx, origin, channelBookingID)
}
