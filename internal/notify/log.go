package notify

import (
	"context"

	"care-ats/internal/actionable"
	"care-ats/internal/logger"
	"care-ats/internal/processor"
	"care-ats/internal/sender"
)

// Log stands in for Telegram when no bot token is configured. Messages and
// alerts are written to the service log instead of being delivered.
type Log struct {
	log *logger.Logger
}

func NewLog(log *logger.Logger) *Log {
	if log == nil {
		log = logger.Discard()
	}
	return &Log{log: log.Component("notify")}
}

func (l *Log) Send(ctx context.Context, msg sender.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.log.WithField("message_id", msg.ID).WithField("to", msg.To).Info("message not delivered, no messenger configured")
	return nil
}

func (l *Log) Alert(_ context.Context, card actionable.ActionCard) error {
	l.log.WithField("insight", card.Insight).WithField("action", card.Action).Warn("operator alert")
	return nil
}

func (l *Log) CallProcessed(_ context.Context, res processor.Result) {
	l.log.WithField("call_id", res.CallID).WithField("status", res.Status).Debug("call processed")
}
