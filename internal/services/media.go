package services

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

type MediaError struct {
	Message string
}

func (e *MediaError) Error() string { return e.Message }

// StreamProbe carries best-effort stream metadata from ffprobe. Zero values
// mean the probe failed or the field was absent; callers treat both the same.
type StreamProbe struct {
	Duration float64
	Bitrate  int
}

// MediaService shells out to ffmpeg/ffprobe to probe, remux and transcode HLS
// streams. Binary paths come from config, falling back to PATH lookup.
type MediaService struct {
	ffmpegPath  string
	ffprobePath string
}

func NewMediaService(ffmpegPath, ffprobePath string) *MediaService {
	return &MediaService{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}
}

// Probe returns duration and bitrate for a stream URL. Probe failures are
// swallowed: the metadata is advisory only.
func (s *MediaService) Probe(ctx context.Context, streamURL string) StreamProbe {
	bin := s.ffprobePath
	if bin == "" {
		found, err := exec.LookPath("ffprobe")
		if err != nil {
			return StreamProbe{}
		}
		bin = found
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, bin,
		"-v", "error",
		"-show_entries", "format=duration,bit_rate",
		"-of", "default=noprint_wrappers=1:nokey=1",
		streamURL,
	)
	out, err := cmd.Output()
	if err != nil {
		return StreamProbe{}
	}

	var probe StreamProbe
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	var lines []string
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) > 0 {
		probe.Duration, _ = strconv.ParseFloat(lines[0], 64)
	}
	if len(lines) > 1 {
		probe.Bitrate, _ = strconv.Atoi(lines[1])
	}
	return probe
}

// RemuxMP4 copies the stream into a self-contained temporary MP4 file and
// returns its path. The MP4 muxer needs seekable output for +faststart, so
// piping is not an option here; the caller removes the file when done.
func (s *MediaService) RemuxMP4(ctx context.Context, streamURL string) (string, error) {
	bin, err := s.ffmpeg()
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp("", "learnus-*.mp4")
	if err != nil {
		return "", &MediaError{Message: "failed to create temporary file"}
	}
	path := tmp.Name()
	tmp.Close()

	cmd := exec.CommandContext(ctx, bin,
		"-loglevel", "error",
		"-y",
		"-i", streamURL,
		"-c", "copy",
		"-bsf:a", "aac_adtstoasc",
		"-movflags", "+faststart",
		path,
	)
	if err := cmd.Run(); err != nil {
		os.Remove(path)
		return "", &MediaError{Message: "ffmpeg failed to remux video"}
	}
	return path, nil
}

// StreamMP3 transcodes the stream to MP3 and returns a reader over ffmpeg's
// stdout. Closing the reader kills the process.
func (s *MediaService) StreamMP3(ctx context.Context, streamURL string) (io.ReadCloser, error) {
	bin, err := s.ffmpeg()
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, bin,
		"-loglevel", "error",
		"-y",
		"-i", streamURL,
		"-vn",
		"-c:a", "libmp3lame",
		"-b:a", "192k",
		"-f", "mp3",
		"pipe:1",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &MediaError{Message: "failed to open ffmpeg pipe"}
	}
	if err := cmd.Start(); err != nil {
		return nil, &MediaError{Message: "failed to start ffmpeg"}
	}
	return &processStream{reader: stdout, cmd: cmd}, nil
}

func (s *MediaService) ffmpeg() (string, error) {
	if s.ffmpegPath != "" {
		return s.ffmpegPath, nil
	}
	bin, err := exec.LookPath("ffmpeg")
	if err != nil {
		return "", &MediaError{Message: "ffmpeg executable not found on server"}
	}
	return bin, nil
}

type processStream struct {
	reader io.ReadCloser
	cmd    *exec.Cmd
}

func (p *processStream) Read(b []byte) (int, error) { return p.reader.Read(b) }

func (p *processStream) Close() error {
	p.reader.Close()
	p.cmd.Process.Kill()
	return p.cmd.Wait()
}
