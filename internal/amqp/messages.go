package amqp

import (
	"encoding/json"
	"time"
)

// TransactionCreatedMessage announces a ledger transaction materialized from
// a recurring instance. Consumers fetch the full records from the database;
// the payload carries only identifiers plus display fields.
type TransactionCreatedMessage struct {
	TransactionID int64     `json:"transaction_id"`
	InstanceID    int64     `json:"instance_id"`
	RuleID        int64     `json:"rule_id"`
	CardID        int64     `json:"card_id"`
	Direction     string    `json:"direction"`
	Amount        string    `json:"amount"`
	Date          string    `json:"date"`
	Timestamp     time.Time `json:"timestamp"`
}

// ToJSON converts the message to JSON bytes
func (m *TransactionCreatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionCreatedMessageFromJSON creates a message from JSON bytes
func TransactionCreatedMessageFromJSON(data []byte) (*TransactionCreatedMessage, error) {
	var msg TransactionCreatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
