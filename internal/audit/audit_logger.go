package audit

import (
	"encoding/json"
	"log"
	"time"
)

type Event struct {
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	AccountID string    `json:"account_id"`
	EntryID   string    `json:"entry_id,omitempty"`
	Amount    int64     `json:"amount,omitempty"`
	Status    string    `json:"status"`
	Details   any       `json:"details,omitempty"`
}

// Logger emits structured audit events for balance mutations and
// reconciliation outcomes.
type Logger struct{}

func NewLogger() *Logger {
	return &Logger{}
}

func (a *Logger) LogMutation(accountID, entryID, direction string, amount int64) {
	a.log(Event{
		Timestamp: time.Now(),
		EventType: "MUTATION",
		AccountID: accountID,
		EntryID:   entryID,
		Amount:    amount,
		Status:    "APPLIED",
		Details:   map[string]string{"direction": direction},
	})
}

func (a *Logger) LogReconcile(accountID string, merged int, balance int64) {
	a.log(Event{
		Timestamp: time.Now(),
		EventType: "RECONCILE",
		AccountID: accountID,
		Amount:    balance,
		Status:    "COMMITTED",
		Details:   map[string]int{"merged_entries": merged},
	})
}

func (a *Logger) LogIntegrityFailure(accountID string, err error) {
	a.log(Event{
		Timestamp: time.Now(),
		EventType: "INTEGRITY",
		AccountID: accountID,
		Status:    "FAILED",
		Details:   map[string]string{"error": err.Error()},
	})
}

func (a *Logger) LogError(accountID string, err error) {
	a.log(Event{
		Timestamp: time.Now(),
		EventType: "ERROR",
		AccountID: accountID,
		Status:    "FAILED",
		Details:   map[string]string{"error": err.Error()},
	})
}

func (a *Logger) log(event Event) {
	data, _ := json.Marshal(event)
	log.Printf("AUDIT: %s", string(data))
}
