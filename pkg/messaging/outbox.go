package messaging

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Outbox is an in-process queue of events waiting to be published. Rows leave
// the outbox only after a successful publish.
type Outbox struct {
	mu     sync.Mutex
	nextID int64
	rows   []*outboxRow
	now    func() time.Time
}

type outboxRow struct {
	ID         int64
	RoutingKey string
	Payload    []byte
	Attempts   int
	NextRetry  time.Time
}

func NewOutbox() *Outbox {
	return &Outbox{now: time.Now}
}

// Record marshals event and queues it under routingKey.
func (o *Outbox) Record(routingKey string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", routingKey, err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	o.nextID++
	o.rows = append(o.rows, &outboxRow{
		ID:         o.nextID,
		RoutingKey: routingKey,
		Payload:    payload,
		NextRetry:  o.now(),
	})
	return nil
}

// Pending returns the number of rows not yet published.
func (o *Outbox) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	return len(o.rows)
}

// claim returns up to limit due rows and hides them until releaseAt so a
// slow publish is not picked up twice.
func (o *Outbox) claim(limit int, releaseAt time.Time) []outboxRow {
	o.mu.Lock()
	defer o.mu.Unlock()

	now := o.now()
	var items []outboxRow
	for _, row := range o.rows {
		if len(items) == limit {
			break
		}
		if row.NextRetry.After(now) {
			continue
		}
		row.NextRetry = releaseAt
		items = append(items, *row)
	}
	return items
}

func (o *Outbox) markSent(id int64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for i, row := range o.rows {
		if row.ID == id {
			o.rows = append(o.rows[:i], o.rows[i+1:]...)
			return
		}
	}
}

func (o *Outbox) markFailure(id int64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, row := range o.rows {
		if row.ID == id {
			row.Attempts++
			row.NextRetry = o.now().Add(retryDelay(row.Attempts))
			return
		}
	}
}
