// Package playback holds the engine's domain model: typed State and
// Queue structs for the playback-state and queue documents, and the
// tagged command type written to /playback/command. A document is
// decoded into the whole struct (DecodeState/DecodeQueue fall back to
// defaults when it is absent or malformed) and written back from the
// whole struct, so fields the structs do not declare are not kept.
package playback

import "encoding/json"

// RepeatMode is the queue's repeat behavior.
type RepeatMode string

const (
	RepeatOff RepeatMode = "off"
	RepeatAll RepeatMode = "all"
	RepeatOne RepeatMode = "one"
)

// State is the typed lens over /playback/state. Every field defaults
// sensibly when the underlying document is absent or partial.
type State struct {
	Playing     bool       `json:"playing"`
	CurrentID   *string    `json:"current_id"`
	Title       string     `json:"title,omitempty"`
	Artist      string     `json:"artist,omitempty"`
	Album       string     `json:"album,omitempty"`
	PositionMs  int64      `json:"position_ms"`
	DurationMs  int64      `json:"duration_ms"`
	Volume      float64    `json:"volume"`
	Shuffle     bool       `json:"shuffle"`
	Repeat      RepeatMode `json:"repeat"`
	Error       string     `json:"error,omitempty"`
}

// DefaultState is the document written at engine init.
func DefaultState() State {
	return State{
		Volume: 0.7,
		Repeat: RepeatOff,
	}
}

// Queue is the typed lens over /queue/current.
type Queue struct {
	Items        []string `json:"items"`
	Index        int      `json:"index"`
	Shuffle      bool     `json:"shuffle"`
	ShuffleOrder []int    `json:"shuffle_order,omitempty"`
}

// DefaultQueue is the document written at engine init.
func DefaultQueue() Queue {
	return Queue{Items: []string{}, Index: 0}
}

// CurrentID resolves the queue's current media id, honoring shuffle_order
// when shuffle is enabled.
func (q Queue) CurrentID() (string, bool) {
	if len(q.Items) == 0 {
		return "", false
	}
	idx := q.Index
	if q.Shuffle && len(q.ShuffleOrder) == len(q.Items) {
		if idx < 0 || idx >= len(q.ShuffleOrder) {
			return "", false
		}
		idx = q.ShuffleOrder[idx]
	}
	if idx < 0 || idx >= len(q.Items) {
		return "", false
	}
	return q.Items[idx], true
}

// ParseRepeatMode parses a repeat mode string, defaulting to RepeatOff
// for anything unrecognized.
func ParseRepeatMode(s string) RepeatMode {
	switch RepeatMode(s) {
	case RepeatAll:
		return RepeatAll
	case RepeatOne:
		return RepeatOne
	default:
		return RepeatOff
	}
}

// DecodeState parses raw JSON into a State, defaulting on any error.
func DecodeState(raw json.RawMessage) State {
	if len(raw) == 0 {
		return DefaultState()
	}
	var s State
	if err := json.Unmarshal(raw, &s); err != nil {
		return DefaultState()
	}
	if s.Repeat == "" {
		s.Repeat = RepeatOff
	}
	return s
}

// DecodeQueue parses raw JSON into a Queue, defaulting on any error.
func DecodeQueue(raw json.RawMessage) Queue {
	if len(raw) == 0 {
		return DefaultQueue()
	}
	var q Queue
	if err := json.Unmarshal(raw, &q); err != nil {
		return DefaultQueue()
	}
	if q.Items == nil {
		q.Items = []string{}
	}
	return q
}
