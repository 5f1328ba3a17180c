package amqp

import (
	"testing"
	"time"
)

func TestTransactionCreatedMessage_JSON(t *testing.T) {
	timestamp := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msg := &TransactionCreatedMessage{
		TransactionID: 42,
		InstanceID:    7,
		RuleID:        3,
		CardID:        1,
		Direction:     "out",
		Amount:        "125.50",
		Date:          "2026-03-01",
		Timestamp:     timestamp,
	}

	jsonBytes, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	parsed, err := TransactionCreatedMessageFromJSON(jsonBytes)
	if err != nil {
		t.Fatalf("TransactionCreatedMessageFromJSON() error = %v", err)
	}

	if parsed.TransactionID != msg.TransactionID {
		t.Errorf("Parsed TransactionID = %v, want %v", parsed.TransactionID, msg.TransactionID)
	}
	if parsed.InstanceID != msg.InstanceID {
		t.Errorf("Parsed InstanceID = %v, want %v", parsed.InstanceID, msg.InstanceID)
	}
	if parsed.Direction != msg.Direction {
		t.Errorf("Parsed Direction = %v, want %v", parsed.Direction, msg.Direction)
	}
	if parsed.Amount != msg.Amount {
		t.Errorf("Parsed Amount = %v, want %v", parsed.Amount, msg.Amount)
	}
	if !parsed.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("Parsed Timestamp = %v, want %v", parsed.Timestamp, msg.Timestamp)
	}
}

func TestTransactionCreatedMessage_InvalidJSON(t *testing.T) {
	invalidJSON := []byte(`{"transaction_id": "not_a_number"}`)

	_, err := TransactionCreatedMessageFromJSON(invalidJSON)
	if err == nil {
		t.Error("TransactionCreatedMessageFromJSON() should fail with invalid JSON")
	}
}
