package amqp

import (
	"encoding/json"
	"time"
)

// DatasetLoadedMessage announces that a fresh dataset was read from its
// backend. It carries the dataset shape, not the records; consumers reload
// through their own source.
type DatasetLoadedMessage struct {
	Backend       string    `json:"backend"`
	Fingerprint   string    `json:"fingerprint"`
	Records       int       `json:"records"`
	Neighborhoods int       `json:"neighborhoods"`
	InvalidDates  int       `json:"invalid_dates"`
	DateMin       string    `json:"date_min,omitempty"`
	DateMax       string    `json:"date_max,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewDatasetLoadedMessage creates a message stamped with the current time.
func NewDatasetLoadedMessage(backend, fingerprint string, records, neighborhoods, invalidDates int, dateMin, dateMax string) *DatasetLoadedMessage {
	return &DatasetLoadedMessage{
		Backend:       backend,
		Fingerprint:   fingerprint,
		Records:       records,
		Neighborhoods: neighborhoods,
		InvalidDates:  invalidDates,
		DateMin:       dateMin,
		DateMax:       dateMax,
		Timestamp:     time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *DatasetLoadedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// DatasetLoadedMessageFromJSON decodes a message body.
func DatasetLoadedMessageFromJSON(data []byte) (*DatasetLoadedMessage, error) {
	var msg DatasetLoadedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
