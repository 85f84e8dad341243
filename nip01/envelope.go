package nip01

import (
	"encoding/json"
	"fmt"
)

// Filter is a NIP-01 subscription filter. Only the fields the client uses
// are modeled; zero values are omitted from the wire form.
type Filter struct {
	Kinds   []int    `json:"kinds,omitempty"`
	Authors []string `json:"authors,omitempty"`
	PTags   []string `json:"#p,omitempty"`
	ETags   []string `json:"#e,omitempty"`
	Since   int64    `json:"since,omitempty"`
}

// Outbound frames. Each marshals to the positional JSON array the relay
// expects, one per websocket text message.

func EventFrame(ev *Event) ([]byte, error) {
	return json.Marshal([]interface{}{"EVENT", ev})
}

func ReqFrame(subID string, filter Filter) ([]byte, error) {
	return json.Marshal([]interface{}{"REQ", subID, filter})
}

func CloseFrame(subID string) ([]byte, error) {
	return json.Marshal([]interface{}{"CLOSE", subID})
}

// RelayMessage is a decoded inbound frame. Fields are populated according
// to Label; unused ones stay zero.
type RelayMessage struct {
	Label    string
	SubID    string // EVENT, EOSE, CLOSED
	Event    *Event // EVENT
	EventID  string // OK
	Accepted bool   // OK
	Message  string // OK message, CLOSED reason, NOTICE text
}

// ParseRelayMessage decodes one inbound text frame. Unknown labels parse
// successfully so the caller can log and move on.
func ParseRelayMessage(data []byte) (*RelayMessage, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err != nil {
		return nil, fmt.Errorf("frame is not a JSON array: %w", err)
	}
	if len(arr) == 0 {
		return nil, fmt.Errorf("empty frame")
	}
	msg := &RelayMessage{}
	if err := json.Unmarshal(arr[0], &msg.Label); err != nil {
		return nil, fmt.Errorf("frame label is not a string: %w", err)
	}
	switch msg.Label {
	case "EVENT":
		if len(arr) < 3 {
			return nil, fmt.Errorf("EVENT frame too short")
		}
		if err := json.Unmarshal(arr[1], &msg.SubID); err != nil {
			return nil, err
		}
		msg.Event = &Event{}
		if err := json.Unmarshal(arr[2], msg.Event); err != nil {
			return nil, fmt.Errorf("malformed event: %w", err)
		}
	case "OK":
		if len(arr) < 3 {
			return nil, fmt.Errorf("OK frame too short")
		}
		if err := json.Unmarshal(arr[1], &msg.EventID); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(arr[2], &msg.Accepted); err != nil {
			return nil, err
		}
		if len(arr) > 3 {
			json.Unmarshal(arr[3], &msg.Message)
		}
	case "EOSE":
		if len(arr) > 1 {
			json.Unmarshal(arr[1], &msg.SubID)
		}
	case "CLOSED":
		if len(arr) < 2 {
			return nil, fmt.Errorf("CLOSED frame too short")
		}
		if err := json.Unmarshal(arr[1], &msg.SubID); err != nil {
			return nil, err
		}
		if len(arr) > 2 {
			json.Unmarshal(arr[2], &msg.Message)
		}
	case "NOTICE":
		if len(arr) > 1 {
			json.Unmarshal(arr[1], &msg.Message)
		}
	}
	return msg, nil
}
