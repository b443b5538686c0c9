package sink

import (
	"context"
	"fmt"
	"io"
	"os/exec"

	"github.com/warpcomdev/inferpipe/internal/frame"
)

// fourccCodec maps the closed (ext, fourcc) table of spec §6 onto the
// ffmpeg codec name that produces it, the same exec.Command-pipe
// idiom internal/reader/video.go uses for decoding.
var fourccCodec = map[string]string{
	"mp4v": "mpeg4",
	"XVID": "mpeg4",
	"X264": "libx264",
}

// videoSink opens an ffmpeg writer lazily on the first frame, once the
// frame's dimensions are known, and pipes raw RGB frames into it (spec
// §4.5.1).
type videoSink struct {
	path   string
	fourcc string
	fps    int
	cmd    *exec.Cmd
	stdin  io.WriteCloser
}

func newVideo(path, fourcc string, fps int) (*videoSink, error) {
	if fps <= 0 {
		fps = 25
	}
	return &videoSink{path: path, fourcc: fourcc, fps: fps}, nil
}

func (s *videoSink) open(width, height int) error {
	codec, ok := fourccCodec[s.fourcc]
	if !ok {
		codec = "mpeg4"
	}
	args := []string{
		"-v", "error", "-y",
		"-f", "rawvideo", "-pix_fmt", "rgb24",
		"-s", fmt.Sprintf("%dx%d", width, height),
		"-r", fmt.Sprintf("%d", s.fps),
		"-i", "-",
		"-vcodec", codec,
		s.path,
	}
	cmd := exec.Command("ffmpeg", args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	s.cmd = cmd
	s.stdin = stdin
	return nil
}

func (s *videoSink) Write(ctx context.Context, f *frame.Frame) error {
	buf := f.Output
	if buf == nil {
		buf = f.Image
	}
	if buf == nil {
		return fmt.Errorf("sink: video frame %s has no pixels", f.Name)
	}
	if s.cmd == nil {
		if err := s.open(buf.Width, buf.Height); err != nil {
			return err
		}
	}
	_, err := s.stdin.Write(buf.Pix[:buf.Size()])
	return err
}

func (s *videoSink) Close() error {
	if s.stdin == nil {
		return nil
	}
	s.stdin.Close()
	return s.cmd.Wait()
}
