package transcoder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"media-ingest/internal/logging"

	// Frame output is PNG
	_ "image/png"
)

// ErrFFmpegUnavailable is returned when ffmpeg or ffprobe is not on PATH.
var ErrFFmpegUnavailable = errors.New("ffmpeg not available")

// Transcoder wraps the ffmpeg/ffprobe binaries. Payloads are spooled to a
// work directory because container formats such as MOV need seekable input.
type Transcoder struct {
	workDir   string
	processes map[string]*exec.Cmd
	processMu sync.Mutex
	nextID    int
}

// VideoInfo contains information about a media container.
type VideoInfo struct {
	Duration     float64   `json:"duration"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	Codec        string    `json:"codec"`
	HasVideo     bool      `json:"hasVideo"`
	CreationTime time.Time `json:"creationTime"`
}

// New creates a new Transcoder that spools payloads under workDir.
// An empty workDir uses the OS temp directory.
func New(workDir string) *Transcoder {
	if workDir != "" {
		if err := os.MkdirAll(workDir, 0o755); err != nil {
			logging.Warn("transcoder: failed to create work dir %s: %v, using temp dir", workDir, err)
			workDir = ""
		}
	}
	return &Transcoder{
		workDir:   workDir,
		processes: make(map[string]*exec.Cmd),
	}
}

// Available reports whether both ffmpeg and ffprobe can be found.
func Available() bool {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return false
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		return false
	}
	return true
}

type probeOutput struct {
	Streams []struct {
		CodecType string            `json:"codec_type"`
		CodecName string            `json:"codec_name"`
		Width     int               `json:"width"`
		Height    int               `json:"height"`
		Duration  string            `json:"duration"`
		Tags      map[string]string `json:"tags"`

		Disposition map[string]int `json:"disposition"`
	} `json:"streams"`
	Format struct {
		Duration string            `json:"duration"`
		Tags     map[string]string `json:"tags"`
	} `json:"format"`
}

// parseProbeOutput turns ffprobe's JSON into a VideoInfo.
func parseProbeOutput(out []byte) (*VideoInfo, error) {
	var probe probeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := &VideoInfo{}
	if d, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
		info.Duration = d
	}
	info.CreationTime = parseCreationTime(probe.Format.Tags)

	for _, s := range probe.Streams {
		if s.CodecType != "video" || info.HasVideo {
			continue
		}
		// Cover art in audio files is an attached picture, not a video track.
		if s.Disposition["attached_pic"] == 1 {
			continue
		}
		info.HasVideo = true
		info.Codec = s.CodecName
		info.Width = s.Width
		info.Height = s.Height
		if info.Duration == 0 {
			if d, err := strconv.ParseFloat(s.Duration, 64); err == nil {
				info.Duration = d
			}
		}
		if info.CreationTime.IsZero() {
			info.CreationTime = parseCreationTime(s.Tags)
		}
	}

	if info.Codec == "" {
		for _, s := range probe.Streams {
			if s.CodecType == "audio" {
				info.Codec = s.CodecName
				if info.Duration == 0 {
					if d, err := strconv.ParseFloat(s.Duration, 64); err == nil {
						info.Duration = d
					}
				}
				break
			}
		}
	}

	if len(probe.Streams) == 0 && info.Duration == 0 {
		return nil, errors.New("ffprobe found no streams")
	}
	return info, nil
}

func parseCreationTime(tags map[string]string) time.Time {
	v := strings.TrimSpace(tags["creation_time"])
	if v == "" {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil || ts.Unix() <= 0 {
		return time.Time{}
	}
	return ts.UTC()
}

// GetVideoInfo retrieves codec, duration and dimension information about a file.
func (t *Transcoder) GetVideoInfo(ctx context.Context, filePath string) (*VideoInfo, error) {
	out, err := t.run(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath,
	)
	if err != nil {
		return nil, err
	}
	return parseProbeOutput(out)
}

// Probe spools data to disk and runs GetVideoInfo on it.
func (t *Transcoder) Probe(ctx context.Context, data []byte, ext string) (*VideoInfo, error) {
	path, cleanup, err := t.spool(data, ext)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	return t.GetVideoInfo(ctx, path)
}

// ExtractFrame decodes the video frame at offset at. When seeking fails
// (offset past the end, broken index) the first frame is used instead.
func (t *Transcoder) ExtractFrame(ctx context.Context, data []byte, ext string, at time.Duration) (image.Image, error) {
	path, cleanup, err := t.spool(data, ext)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	seek := strconv.FormatFloat(at.Seconds(), 'f', 3, 64)
	out, err := t.run(ctx, "ffmpeg",
		"-ss", seek,
		"-i", path,
		"-vframes", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)
	if err != nil || len(out) == 0 {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logging.Debug("FFmpeg seek to %ss failed: %v, retrying at first frame", seek, err)
		out, err = t.run(ctx, "ffmpeg",
			"-i", path,
			"-vframes", "1",
			"-f", "image2pipe",
			"-vcodec", "png",
			"-",
		)
		if err != nil {
			return nil, err
		}
	}
	return decodePNG(out)
}

// DecodeImage has ffmpeg decode a still image into an image.Image. It covers
// formats the Go decoders do not know (HEIC when built with libheif support).
func (t *Transcoder) DecodeImage(ctx context.Context, data []byte, ext string) (image.Image, error) {
	path, cleanup, err := t.spool(data, ext)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	out, err := t.run(ctx, "ffmpeg",
		"-i", path,
		"-vframes", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-pix_fmt", "rgb24",
		"-",
	)
	if err != nil {
		return nil, err
	}
	return decodePNG(out)
}

func decodePNG(out []byte) (image.Image, error) {
	if len(out) == 0 {
		return nil, errors.New("ffmpeg produced no output")
	}
	img, _, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("failed to decode ffmpeg output: %w", err)
	}
	return img, nil
}

func (t *Transcoder) spool(data []byte, ext string) (string, func(), error) {
	f, err := os.CreateTemp(t.workDir, "ingest-*"+ext)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create spool file: %w", err)
	}
	path := f.Name()
	cleanup := func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logging.Warn("failed to remove spool file %s: %v", path, err)
		}
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("failed to write spool file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to close spool file: %w", err)
	}
	return path, cleanup, nil
}

// run executes a tracked ffmpeg/ffprobe process and returns its stdout.
func (t *Transcoder) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if _, err := exec.LookPath(name); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFFmpegUnavailable, name)
	}

	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	t.processMu.Lock()
	t.nextID++
	key := fmt.Sprintf("%s-%d", name, t.nextID)
	t.processes[key] = cmd
	t.processMu.Unlock()

	defer func() {
		t.processMu.Lock()
		delete(t.processes, key)
		t.processMu.Unlock()
	}()

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s error: %w - %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// Cleanup stops all active ffmpeg/ffprobe processes.
func (t *Transcoder) Cleanup() {
	t.processMu.Lock()
	defer t.processMu.Unlock()

	for key, cmd := range t.processes {
		if cmd.Process != nil {
			logging.Info("Killing transcoder process %s", key)
			if err := cmd.Process.Kill(); err != nil {
				logging.Warn("failed to kill transcoder process %s: %v", key, err)
			}
		}
	}
}

// Active returns the number of running processes.
func (t *Transcoder) Active() int {
	t.processMu.Lock()
	defer t.processMu.Unlock()
	return len(t.processes)
}
