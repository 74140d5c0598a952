package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"budgetbook/internal/core"
)

// TransactionEvent announces a committed ledger write. It carries ids only;
// consumers read current state from the database.
type TransactionEvent struct {
	EventID       string    `json:"event_id"`
	Op            string    `json:"op"`
	TransactionID int64     `json:"transaction_id"`
	AccountID     int64     `json:"account_id"`
	UserID        string    `json:"user_id"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewTransactionEvent(op string, tx core.Transaction, userID string) *TransactionEvent {
	return &TransactionEvent{
		EventID:       uuid.NewString(),
		Op:            op,
		TransactionID: tx.ID,
		AccountID:     tx.AccountID,
		UserID:        userID,
		Timestamp:     time.Now().UTC(),
	}
}

func (m *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionEventFromJSON decodes and sanity-checks an event body.
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var msg TransactionEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.EventID == "" || msg.AccountID <= 0 {
		return nil, errors.New("transaction event missing event_id or account_id")
	}
	return &msg, nil
}
