package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Audit event types.
const (
	WorkSubmitted   = "work.submitted"
	WorkDiscarded   = "work.discarded"
	WorkForwarded   = "work.forwarded"
	WorkApproved    = "work.approved"
	WorkRejected    = "work.rejected"
	WorkResubmitted = "work.resubmitted"
	CycleOpened     = "cr_cycle.opened"
	CycleClosed     = "cr_cycle.closed"
	CycleDiscarded  = "cr_cycle.discarded"
	StorageCleared  = "storage.cleared"
	SessionEnded    = "session.ended"
)

type Writer struct {
	Now func() time.Time
}

type EventPayload map[string]any

// Append inserts one audit record through ex, which may be the database or an
// open transaction.
func (w Writer) Append(ctx context.Context, ex sqlx.ExecerContext, evtType, entityID, actorID, role string, payload EventPayload) error {
	now := w.Now
	if now == nil {
		now = time.Now
	}
	ts := now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = ex.ExecContext(ctx, `INSERT INTO events(ts,type,entity_id,actor_id,role,payload_json) VALUES (?,?,?,?,?,?)`,
		ts, evtType, entityID, actorID, role, string(data))
	return err
}
