package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// Notifier wraps Postgres NOTIFY for the report channel.  Dashboard
// consumers LISTEN on the same channel to refresh when a new symptom
// report lands; the conversation flow never waits on it.
type Notifier struct {
	DB      *sql.DB
	Channel string
}

// NewNotifier constructs a Notifier.  The channel should match the
// NOTIFY_CHANNEL configuration value.
func NewNotifier(db *sql.DB, channel string) *Notifier {
	return &Notifier{DB: db, Channel: channel}
}

// Notify publishes the report id on the channel.
func (n *Notifier) Notify(ctx context.Context, reportID string) error {
	channel := pq.QuoteIdentifier(n.Channel)
	_, err := n.DB.ExecContext(ctx, fmt.Sprintf("NOTIFY %s, %s", channel, pq.QuoteLiteral(reportID)))
	return err
}
