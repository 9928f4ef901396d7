// Package notify owns notification fan-out and delivery: aligning the
// database trigger with the configured mode, bridging NOTIFY events to
// live delivery, and serving the notification read operations.
package notify

import (
	"context"
	"database/sql"
	"fmt"
)

// ListenChannel is the NOTIFY channel the fan-out trigger publishes on.
const ListenChannel = "tradefloor_messages"

// EnsureFanoutMode aligns the message fan-out trigger with the
// configured mode at startup. The migration installs only the trigger
// function; the trigger itself exists exactly when trigger mode is on,
// so the two modes never double-write notification rows.
func EnsureFanoutMode(ctx context.Context, pool *sql.DB, triggerMode bool) error {
	if _, err := pool.ExecContext(ctx, `DROP TRIGGER IF EXISTS message_fanout ON messages`); err != nil {
		return fmt.Errorf("drop fanout trigger: %w", err)
	}
	if !triggerMode {
		return nil
	}

	const create = `
CREATE TRIGGER message_fanout
AFTER INSERT ON messages
FOR EACH ROW EXECUTE FUNCTION tradefloor_message_fanout()`
	if _, err := pool.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create fanout trigger: %w", err)
	}
	return nil
}
