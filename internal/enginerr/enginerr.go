// Package enginerr declares the engine's error kinds so callers can use
// errors.Is/errors.As against a stable sentinel regardless of which
// component wrapped the underlying failure.
package enginerr

import "errors"

var (
	// ErrNotFound is returned when a required store lookup finds nothing.
	ErrNotFound = errors.New("not found")
	// ErrStoreIO wraps a store get/put failure.
	ErrStoreIO = errors.New("store i/o error")
	// ErrImportClassify marks a file whose extension is not a known media format.
	ErrImportClassify = errors.New("unclassifiable file extension")
	// ErrMetadataRead marks a tag-library failure during import.
	ErrMetadataRead = errors.New("metadata read failure")
	// ErrDecode marks a decoder-thread failure.
	ErrDecode = errors.New("decode error")
	// ErrDevice marks an output-device configuration or callback failure.
	ErrDevice = errors.New("device error")
	// ErrInvalidConfig marks a clock config with a zero modulus or period.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrBadCommand marks an unrecognized command payload.
	ErrBadCommand = errors.New("bad command")
)

// AudioDeviceOrDecodeError is the playback-state error string the
// heartbeat surfaces when either ErrDecode or ErrDevice becomes sticky.
const AudioDeviceOrDecodeError = "audio_device_or_decode_error"
