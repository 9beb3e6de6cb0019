// Package queue defines message payloads exchanged over the message broker
// and the consumer that turns them into the audit log.
package queue

// GlossaryEventsQueue is the durable queue glossary events are routed to.
const GlossaryEventsQueue = "glossary.events"

// Event types.
const (
	EventTermCreated   = "term.created"
	EventTermPublished = "term.published"
	EventTermUpdated   = "term.updated"
	EventTermArchived  = "term.archived"
	EventTermRestored  = "term.restored"
	EventTermDeleted   = "term.deleted"
)

// GlossaryEvent is published after a glossary mutation commits.  It
// contains enough information for the audit consumer to record who did
// what without querying the primary database.
type GlossaryEvent struct {
	Type            string `json:"type"`
	StableID        string `json:"stable_id"`
	TermID          int64  `json:"term_id,omitempty"`
	Term            string `json:"term"`
	Version         int    `json:"version,omitempty"`
	ArchivedVersion int    `json:"archived_version,omitempty"`
	ActorID         string `json:"actor_id"`
	OccurredAt      string `json:"occurred_at"`
}
