package engine

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/Zyko0/go-sdl3/sdl"

	"mcgurk/trial"
)

// frameQueue is the number of decoded frames buffered ahead of display.
const frameQueue = 8

// streamInfo is what playback needs to know about a video file.
type streamInfo struct {
	Width, Height int
	FrameRate     float64
	HasAudio      bool
}

type probeOutput struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		RFrameRate   string `json:"r_frame_rate"`
	} `json:"streams"`
}

func parseProbe(data []byte) (streamInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return streamInfo{}, fmt.Errorf("parse ffprobe output: %w", err)
	}

	var info streamInfo
	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			if info.Width != 0 {
				continue
			}
			info.Width, info.Height = s.Width, s.Height
			info.FrameRate = parseRate(s.AvgFrameRate)
			if info.FrameRate == 0 {
				info.FrameRate = parseRate(s.RFrameRate)
			}
		case "audio":
			info.HasAudio = true
		}
	}
	if info.Width <= 0 || info.Height <= 0 {
		return info, errors.New("no video stream")
	}
	if info.FrameRate <= 0 {
		return info, errors.New("unknown frame rate")
	}
	return info, nil
}

// parseRate reads ffprobe rates such as "25/1" or "30000/1001".
func parseRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !ok {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

func probe(ctx context.Context, path string) (streamInfo, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "stream=codec_type,width,height,avg_frame_rate,r_frame_rate",
		"-of", "json",
		path)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	data, err := cmd.Output()
	if err != nil {
		return streamInfo{}, fmt.Errorf("ffprobe %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}
	return parseProbe(data)
}

// decodeAudio returns the whole soundtrack in the mixer format.
func decodeAudio(ctx context.Context, path string) (*SoundResource, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-v", "error",
		"-i", path,
		"-vn",
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ac", strconv.Itoa(int(audioSpec.Channels)),
		"-ar", strconv.Itoa(int(audioSpec.Freq)),
		"-")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	data, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("decode audio %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}
	return &SoundResource{Data: data}, nil
}

// readFrames reads fixed-size RGB24 frames from r into frames until EOF,
// an error or done is closed. It closes frames when it returns.
func readFrames(r io.Reader, size int, frames chan<- []byte, done <-chan struct{}) error {
	defer close(frames)
	br := bufio.NewReaderSize(r, size)
	for {
		buf := make([]byte, size)
		if _, err := io.ReadFull(br, buf); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return err
		}
		select {
		case frames <- buf:
		case <-done:
			return nil
		}
	}
}

// Video plays one stimulus file: frames decoded by an ffmpeg process into a
// streaming texture, the soundtrack through the mixer.
type Video struct {
	display *Display
	path    string
	info    streamInfo
	sound   *SoundResource
	texture *sdl.Texture

	cancel context.CancelFunc
	cmd    *exec.Cmd
	frames chan []byte
	done   chan struct{}
	errc   chan error
	// readErr is the reader's result once it has been collected from errc.
	readErr  error
	readDone bool

	shown   int
	ended   bool
	started bool
}

// OpenVideo probes path, decodes its soundtrack and prepares the decoder.
// Playback begins with Start.
func (d *Display) OpenVideo(path string) (trial.Video, error) {
	ctx, cancel := context.WithCancel(context.Background())

	info, err := probe(ctx, path)
	if err != nil {
		cancel()
		return nil, err
	}

	v := &Video{display: d, path: path, info: info, cancel: cancel}
	if info.HasAudio && d.mixer != nil {
		v.sound, err = decodeAudio(ctx, path)
		if err != nil {
			cancel()
			return nil, err
		}
	}

	v.texture, err = d.renderer.CreateTexture(sdl.PIXELFORMAT_RGB24, sdl.TEXTUREACCESS_STREAMING, info.Width, info.Height)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create video texture: %w", err)
	}

	v.cmd = exec.CommandContext(ctx, "ffmpeg",
		"-v", "error",
		"-i", path,
		"-an",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-")
	stdout, err := v.cmd.StdoutPipe()
	if err != nil {
		v.Close()
		return nil, err
	}
	if err := v.cmd.Start(); err != nil {
		v.Close()
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	v.startReader(stdout, info.Width*info.Height*3)
	return v, nil
}

func (v *Video) startReader(r io.Reader, size int) {
	v.frames = make(chan []byte, frameQueue)
	v.done = make(chan struct{})
	v.errc = make(chan error, 1)
	go func() {
		v.errc <- readFrames(r, size, v.frames, v.done)
	}()
}

// waitReader blocks until the frame reader has returned and reports its
// error. It may be called more than once.
func (v *Video) waitReader() error {
	if v.errc == nil || v.readDone {
		return v.readErr
	}
	v.readErr = <-v.errc
	v.readDone = true
	return v.readErr
}

// Start shows the first frame and starts the soundtrack.
func (v *Video) Start() error {
	if v.started {
		return errors.New("video already started")
	}
	v.started = true
	if v.sound != nil && !v.display.mixer.Play(v.sound) {
		return errors.New("no free audio slot")
	}
	_, err := v.Present(0)
	return err
}

// Present shows the frame due at elapsed. Late frames are dropped so the
// picture keeps pace with the soundtrack.
func (v *Video) Present(elapsed time.Duration) (bool, error) {
	if v.ended {
		return true, nil
	}

	due := int(elapsed.Seconds()*v.info.FrameRate) + 1
	var frame []byte
	for v.shown < due {
		f, ok := <-v.frames
		if !ok {
			v.ended = true
			if err := v.waitReader(); err != nil {
				return true, fmt.Errorf("decode %s: %w", v.path, err)
			}
			break
		}
		frame = f
		v.shown++
	}

	if frame != nil {
		if err := v.texture.Update(nil, frame, int32(v.info.Width*3)); err != nil {
			return false, fmt.Errorf("upload frame: %w", err)
		}
	}
	if v.ended {
		return true, nil
	}

	d := v.display
	d.clear()
	w, h := float32(v.info.Width), float32(v.info.Height)
	dst := sdl.FRect{
		X: (float32(d.width) - w) / 2,
		Y: (float32(d.height) - h) / 2,
		W: w,
		H: h,
	}
	d.renderer.RenderTexture(v.texture, nil, &dst)
	d.renderer.Present()
	return false, nil
}

// Close stops the decoder and the soundtrack. It is safe to call twice.
func (v *Video) Close() error {
	if v.sound != nil {
		v.display.mixer.Stop(v.sound)
	}
	if v.done != nil {
		close(v.done)
		v.done = nil
	}
	v.cancel()
	// Wait must not run while the pipe is still being read.
	v.waitReader()
	if v.cmd != nil && v.cmd.Process != nil {
		v.cmd.Wait()
		v.cmd = nil
	}
	if v.texture != nil {
		v.texture.Destroy()
		v.texture = nil
	}
	return nil
}
