package pipeline

import (
	"fmt"
	"os"
	"strings"

	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/wav"
)

// probeFile opens path just far enough to learn its sample rate and
// channel count (the format's declared channel count, even though beep
// always decodes to stereo pairs), then closes it. The decode thread
// reopens the file for the real decode pass.
func probeFile(path string) (rate, channels int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("probe %s: %w", path, err)
	}
	defer f.Close()

	switch strings.ToLower(extOf(path)) {
	case ".mp3":
		streamer, format, err := mp3.Decode(f)
		if err != nil {
			return 0, 0, fmt.Errorf("probe mp3 %s: %w", path, err)
		}
		streamer.Close()
		return int(format.SampleRate), format.NumChannels, nil
	case ".wav":
		streamer, format, err := wav.Decode(f)
		if err != nil {
			return 0, 0, fmt.Errorf("probe wav %s: %w", path, err)
		}
		streamer.Close()
		return int(format.SampleRate), format.NumChannels, nil
	default:
		return 0, 0, fmt.Errorf("probe %s: unsupported format %q", path, extOf(path))
	}
}

func extOf(path string) string {
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return ""
	}
	return path[i:]
}
