package bridge

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Media kinds reported in SendResult.
const (
	KindImage    = "image"
	KindVideo    = "video"
	KindAudio    = "audio"
	KindDocument = "document"
)

var ffmpegBin = "ffmpeg"

// Classify returns the media kind and MIME type the bridge will use for path.
func Classify(path string) (kind, mime string) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return KindImage, "image/jpeg"
	case ".png":
		return KindImage, "image/png"
	case ".gif":
		return KindImage, "image/gif"
	case ".webp":
		return KindImage, "image/webp"
	case ".mp4":
		return KindVideo, "video/mp4"
	case ".avi":
		return KindVideo, "video/avi"
	case ".mov":
		return KindVideo, "video/quicktime"
	case ".ogg":
		return KindAudio, "audio/ogg; codecs=opus"
	case ".mp3", ".m4a", ".wav", ".aac", ".flac":
		return KindAudio, "audio/mpeg"
	default:
		return KindDocument, "application/octet-stream"
	}
}

// IsOgg reports whether path names an Ogg file.
func IsOgg(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".ogg"
}

// ConvertToOpusOgg transcodes an audio file to a temporary Ogg/Opus file
// suitable for a WhatsApp voice message. The caller removes the result.
func ConvertToOpusOgg(ctx context.Context, inputPath string) (string, error) {
	if _, err := os.Stat(inputPath); err != nil {
		return "", fmt.Errorf("input missing: %w", err)
	}
	if _, err := exec.LookPath(ffmpegBin); err != nil {
		return "", fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}

	tmp, err := os.CreateTemp("", "wa-voice-*.ogg")
	if err != nil {
		return "", err
	}
	out := tmp.Name()
	_ = tmp.Close()

	cmd := exec.CommandContext(ctx, ffmpegBin,
		"-i", inputPath,
		"-c:a", "libopus",
		"-b:a", "32k",
		"-ar", "24000",
		"-application", "voip",
		"-vbr", "on",
		"-compression_level", "10",
		"-frame_duration", "60",
		"-y",
		out,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		_ = os.Remove(out)
		return "", fmt.Errorf("ffmpeg failed: %w: %s", err, lastLine(output))
	}
	return out, nil
}

func lastLine(b []byte) string {
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	return lines[len(lines)-1]
}
