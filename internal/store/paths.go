package store

import "fmt"

// Well-known document paths, per the engine's data model.
const (
	PlaybackState   = "/playback/state"
	PlaybackCommand = "/playback/command"
	PlaybackEQ      = "/playback/eq"
	QueueCurrent    = "/queue/current"
	ImportRequest   = "/import/request"
	ImportStatus    = "/import/status"
	Favorites       = "/favorites"
	ClockTick       = "/clock/tick"
	ClockConfig     = "/clock/config"
	SettingsAudio   = "/settings/audio"
	SettingsStorage = "/settings/storage"
)

// Prefixes for listing and watching whole collections.
const (
	LibraryPrefix  = "/library/"
	ArtPrefix      = "/art/"
	HistoryPrefix  = "/history/"
	StatsPrefix    = "/stats/"
	PlaylistPrefix = "/playlists/"
	ClockPulsePrefix = "/clock/pulses/"
)

func LibraryPath(id string) string  { return LibraryPrefix + id }
func ArtPath(id string) string      { return ArtPrefix + id }
func HistoryPath(epochMs int64) string {
	return fmt.Sprintf("%s%d", HistoryPrefix, epochMs)
}
func StatsPath(id string) string    { return StatsPrefix + id }
func PlaylistPath(id string) string { return PlaylistPrefix + id }
func ClockPulsePath(name string) string {
	return ClockPulsePrefix + name
}
