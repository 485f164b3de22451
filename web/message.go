package web

import (
	"encoding/json"

	uuid "github.com/satori/go.uuid"

	"github.com/false2true/false2true/addon"
)

type messageType string

const (
	// sent once to every new subscriber
	messageTypeStats messageType = "stats"
	// sent for every modified response
	messageTypeModified messageType = "modified"
)

// message is one JSON text frame of the /ws stream.
type message struct {
	Type        messageType `json:"type"`
	ID          *uuid.UUID  `json:"id,omitempty"`
	URL         string      `json:"url,omitempty"`
	Method      string      `json:"method,omitempty"`
	ContentType string      `json:"contentType,omitempty"`
	FalseCount  int         `json:"falseCount,omitempty"`
	Total       int64       `json:"total"`
}

func newMessageStats(total int64) *message {
	return &message{Type: messageTypeStats, Total: total}
}

func newMessageModified(i addon.Inspection) *message {
	id := i.FlowID
	return &message{
		Type:        messageTypeModified,
		ID:          &id,
		URL:         i.URL,
		Method:      i.Method,
		ContentType: i.ContentType,
		FalseCount:  i.FalseCount,
		Total:       i.Total,
	}
}

func (m *message) toBytes() []byte {
	data, err := json.Marshal(m)
	if err != nil {
		// message holds only strings and numbers
		panic(err)
	}
	return data
}
