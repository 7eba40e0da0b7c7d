package models

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"
)

// SessionState is the authoritative session envelope. The local process only
// derives countdowns from TimerEndTime; it never advances the session on its
// own.
type SessionState struct {
	TimerEndTime time.Time    `json:"timerEndTime"`
	Running      bool         `json:"running"`
	Locked       bool         `json:"locked"`
	Banned       bool         `json:"banned"`
	BanReason    string       `json:"banReason,omitempty"`
	Stream       StreamSource `json:"stream,omitempty"`
}

// Remaining returns the session countdown at the given instant, clamped at
// zero.
func (s SessionState) Remaining(now time.Time) time.Duration {
	if !s.Running || s.TimerEndTime.IsZero() {
		return 0
	}
	if d := s.TimerEndTime.Sub(now); d > 0 {
		return d
	}
	return 0
}

// StreamKind discriminates the two historical wire shapes of the stream
// field.
type StreamKind string

const (
	StreamNone     StreamKind = ""
	StreamLegacy   StreamKind = "legacy"
	StreamEmbedded StreamKind = "embedded"
)

// StreamSource is a tagged union over the legacy bare-URL stream field and
// the newer provider/id object. Older authorities send a plain string.
type StreamSource struct {
	Kind     StreamKind `json:"kind"`
	URL      string     `json:"url,omitempty"`
	Provider string     `json:"provider,omitempty"`
	EmbedID  string     `json:"embedId,omitempty"`
}

func (s *StreamSource) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*s = StreamSource{}
		return nil
	}
	if data[0] == '"' {
		var url string
		if err := json.Unmarshal(data, &url); err != nil {
			return fmt.Errorf("legacy stream field: %w", err)
		}
		*s = StreamSource{Kind: StreamLegacy, URL: url}
		return nil
	}
	var obj struct {
		Provider string `json:"provider"`
		EmbedID  string `json:"embedId"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("stream field: %w", err)
	}
	*s = StreamSource{Kind: StreamEmbedded, Provider: obj.Provider, EmbedID: obj.EmbedID}
	return nil
}

func (s StreamSource) MarshalJSON() ([]byte, error) {
	type plain StreamSource
	return json.Marshal(plain(s))
}
