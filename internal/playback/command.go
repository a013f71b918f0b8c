package playback

import (
	"encoding/json"
	"fmt"
)

// Action names recognized on /playback/command.
const (
	ActionPlay        = "play"
	ActionPause       = "pause"
	ActionResume      = "resume"
	ActionStop        = "stop"
	ActionSeek        = "seek"
	ActionNext        = "next"
	ActionPrevious    = "previous"
	ActionSetVolume   = "set_volume"
	ActionSetShuffle  = "set_shuffle"
	ActionSetRepeat   = "set_repeat"

	// actionShutdown is not a valid client-issued action; it is the
	// sentinel the engine writes to wake a blocked command watcher on
	// shutdown. Watchers recognize and drop it.
	actionShutdown = "__shutdown__"
)

// Command is a tagged action+payload record written to
// /playback/command. Go has no native tagged union, so payload fields
// for every action are carried optionally on one struct, matching the
// "tagged action + payload" wording of the data model.
type Command struct {
	Action     string  `json:"action"`
	ID         string  `json:"id,omitempty"`
	PositionMs int64   `json:"position_ms,omitempty"`
	Volume     float64 `json:"volume,omitempty"`
	Enabled    bool    `json:"enabled,omitempty"`
	Mode       string  `json:"mode,omitempty"`
}

// IsShutdownSentinel reports whether this command is the internal
// wake-up record, not a real client command.
func (c Command) IsShutdownSentinel() bool {
	return c.Action == actionShutdown
}

// ShutdownSentinelCommand is written to /playback/command at shutdown to
// unblock a watcher that is otherwise passively waiting.
func ShutdownSentinelCommand() Command {
	return Command{Action: actionShutdown}
}

// ParseCommand decodes raw JSON into a Command. An unrecognized action
// is not an error here — dispatch treats it as BadCommand and ignores it
// silently, per the error-handling design.
func ParseCommand(raw json.RawMessage) (Command, error) {
	var c Command
	if err := json.Unmarshal(raw, &c); err != nil {
		return Command{}, fmt.Errorf("playback: parse command: %w", err)
	}
	return c, nil
}

// Valid reports whether Action is one of the recognized action names.
func (c Command) Valid() bool {
	switch c.Action {
	case ActionPlay, ActionPause, ActionResume, ActionStop, ActionSeek,
		ActionNext, ActionPrevious, ActionSetVolume, ActionSetShuffle, ActionSetRepeat:
		return true
	default:
		return false
	}
}
