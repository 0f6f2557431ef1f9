package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/idelchi/recrypt/internal/fileutil"
)

// ErrNoVideoStream is returned when a file has no video stream to probe.
var ErrNoVideoStream = errors.New("no video stream")

// ProblematicCodecs are decodable in principle but fail in common frame readers.
//
//nolint:gochecknoglobals
var ProblematicCodecs = []string{"av1", "hevc"}

// SupportedCodecs are known to decode reliably.
//
//nolint:gochecknoglobals
var SupportedCodecs = []string{"h264", "h265", "vp8", "vp9", "mjpeg", "mpeg4"}

// Options configures a Toolkit.
type Options struct {
	FFprobe string
	FFmpeg  string
	// Target is the ffmpeg video encoder used for conversions.
	Target string
	// Timeout bounds each conversion.
	Timeout time.Duration
}

// Toolkit wraps ffprobe and ffmpeg.
type Toolkit struct {
	runner Runner
	opts   Options
	log    logrus.FieldLogger
}

// New returns a Toolkit running commands through runner.
func New(runner Runner, opts Options, log logrus.FieldLogger) *Toolkit {
	return &Toolkit{runner: runner, opts: opts, log: log}
}

// Codec returns the codec name of the first video stream.
func (t *Toolkit) Codec(ctx context.Context, path string) (string, error) {
	out, err := t.runner.Run(ctx, t.opts.FFprobe,
		"-v", "quiet",
		"-select_streams", "v:0",
		"-show_entries", "stream=codec_name",
		"-of", "csv=p=0",
		path,
	)
	if err != nil {
		return "", fmt.Errorf("probing codec of %q: %w", path, err)
	}

	codec := strings.TrimSpace(string(out))
	if codec == "" {
		return "", fmt.Errorf("%w in %q", ErrNoVideoStream, path)
	}

	return codec, nil
}

// Stream is one entry of ffprobe's stream list.
type Stream struct {
	Index      int    `json:"index"`
	CodecName  string `json:"codec_name"`
	CodecType  string `json:"codec_type"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	PixFmt     string `json:"pix_fmt,omitempty"`
	FrameRate  string `json:"r_frame_rate,omitempty"`
	FrameCount string `json:"nb_frames,omitempty"`
}

// Format is ffprobe's container section. Numbers are reported as strings.
type Format struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

// Info is the parsed output of ffprobe -show_format -show_streams.
type Info struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Video returns the first video stream.
func (i Info) Video() (Stream, bool) {
	for _, s := range i.Streams {
		if s.CodecType == "video" {
			return s, true
		}
	}

	return Stream{}, false
}

// Info probes container and stream details.
func (t *Toolkit) Info(ctx context.Context, path string) (Info, error) {
	out, err := t.runner.Run(ctx, t.opts.FFprobe,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	if err != nil {
		return Info{}, fmt.Errorf("probing %q: %w", path, err)
	}

	var info Info
	if err := json.Unmarshal(out, &info); err != nil {
		return Info{}, fmt.Errorf("decoding probe output for %q: %w", path, err)
	}

	return info, nil
}

// Readable reports whether the first frame decodes.
func (t *Toolkit) Readable(ctx context.Context, path string) bool {
	_, err := t.runner.Run(ctx, t.opts.FFmpeg,
		"-v", "error",
		"-i", path,
		"-frames:v", "1",
		"-f", "null",
		"-",
	)
	if err != nil {
		t.log.WithField("file", path).WithError(err).Debug("first frame does not decode")

		return false
	}

	return true
}

// Convert re-encodes in into out with the target encoder, AAC audio and 8-bit yuv420p.
// out is replaced atomically.
func (t *Toolkit) Convert(ctx context.Context, in, out string, overwrite bool) (size int64, err error) {
	ctx, cancel := context.WithTimeout(ctx, t.opts.Timeout)
	defer cancel()

	tmp, err := fileutil.CreateAtomic(out, 0o644, filepath.Ext(out), overwrite) //nolint:mnd
	if err != nil {
		return 0, fmt.Errorf("preparing atomic write: %w", err)
	}

	defer tmp.CleanupOnError(&err)

	if _, err = t.runner.Run(ctx, t.opts.FFmpeg,
		"-y",
		"-i", in,
		"-c:v", t.opts.Target,
		"-c:a", "aac",
		"-preset", "fast",
		"-pix_fmt", "yuv420p",
		tmp.Name(),
	); err != nil {
		return 0, fmt.Errorf("converting %q: %w", in, err)
	}

	size, err = tmp.Commit()
	if err != nil {
		return 0, fmt.Errorf("finalizing %q: %w", out, err)
	}

	return size, nil
}

// Problematic reports whether codec needs conversion even when a frame decodes.
func Problematic(codec string) bool {
	return slices.Contains(ProblematicCodecs, codec)
}

// Supported reports whether codec is known to decode reliably.
func Supported(codec string) bool {
	return slices.Contains(SupportedCodecs, codec)
}

// Outcome reports what Preprocess did with one file.
type Outcome struct {
	// Input file path
	Input string

	// Output is the path to use downstream: the input itself or the converted copy.
	Output string

	// Codec of the input, empty if it could not be probed
	Codec string

	// Readable is whether the input's first frame decoded
	Readable bool

	// Video stream details, when probed
	Video Stream

	// Duration as reported by ffprobe, in seconds
	Duration string

	// Converted is whether a new file was written
	Converted bool

	// Output file size in bytes, when converted
	OutputSize int64
}

// ConvertedPath is where Preprocess writes the converted copy of path.
// An empty dir places it next to the input.
func ConvertedPath(path, dir string) string {
	if dir == "" {
		dir = filepath.Dir(path)
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	return filepath.Join(dir, "converted_"+stem+".mp4")
}

// Preprocess converts path when its codec is problematic, its first frame does not decode,
// or force is set. Otherwise the input is returned as is.
func (t *Toolkit) Preprocess(ctx context.Context, path, outDir string, force bool) (Outcome, error) {
	outcome := Outcome{Input: path, Output: path}

	outcome.Readable = t.Readable(ctx, path)

	codec, err := t.Codec(ctx, path)
	if err != nil {
		t.log.WithField("file", path).WithError(err).Debug("codec probe failed")
	}

	outcome.Codec = codec

	if !force && outcome.Readable && !Problematic(codec) {
		return outcome, nil
	}

	target := ConvertedPath(path, outDir)

	t.log.WithFields(logrus.Fields{"file": path, "codec": codec, "target": target}).Info("converting")

	size, err := t.Convert(ctx, path, target, true)
	if err != nil {
		return outcome, err
	}

	outcome.Output = target
	outcome.Converted = true
	outcome.OutputSize = size

	return outcome, nil
}
