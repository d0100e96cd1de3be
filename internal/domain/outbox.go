package domain

import "time"

// SequenceTopic is the single broker queue name used by this core.
const SequenceTopic = "SEQUENCE_TOPIC"

// DefaultMaxRetries is Outbox.maxRetries' default.
const DefaultMaxRetries = 5

// Outbox is the durable hand-off row from Scheduler to Pump to broker.
type Outbox struct {
	ID          string
	Topic       string
	Payload     []byte
	IdemKey     string
	Processed   bool
	ProcessedAt *time.Time
	Retries     int
	MaxRetries  int
	CreatedAt   time.Time
}
