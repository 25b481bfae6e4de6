// Package capture feeds microphone audio into a sample sink
package capture

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"

	errs "github.com/pitchlab/sensorpipe/internal/errors"
)

// SampleSink absorbs one callback's worth of samples. Called from the
// capture loop at a fixed cadence; implementations must not block.
type SampleSink interface {
	Process(samples []float32)
}

// Capturer streams mono audio from the best available input device into a
// SampleSink. The read loop is the real-time boundary: it does nothing
// between reads except hand the buffer to the sink.
type Capturer struct {
	sink         SampleSink
	sampleRate   int
	framesPerBuf int

	mu      sync.Mutex
	running bool
	stream  *portaudio.Stream
	cancel  context.CancelFunc
	once    *sync.Once
}

// NewCapturer initializes the audio host and creates a capturer.
func NewCapturer(sink SampleSink, sampleRate int) (*Capturer, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, errs.Wrap(err, errs.AudioDeviceUnavailable, "audio host init failed")
	}

	return &Capturer{
		sink:         sink,
		sampleRate:   sampleRate,
		framesPerBuf: FramesPerBuffer,
	}, nil
}

// Start opens the input device and begins the capture loop.
func (c *Capturer) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = true
	c.mu.Unlock()

	dev, err := pickInputDevice()
	if err != nil {
		return err
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: InputChannels,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(c.sampleRate),
		FramesPerBuffer: c.framesPerBuf,
	}

	buf := make([]float32, c.framesPerBuf)
	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		return errs.Wrapf(err, errs.AudioDeviceUnavailable, "open stream on %q", dev.Name)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return errs.Wrapf(err, errs.AudioDeviceUnavailable, "start stream on %q", dev.Name)
	}

	loopCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	c.stream = stream
	c.cancel = cancel
	c.once = &sync.Once{}
	c.mu.Unlock()

	slog.Info("started audio capture", "device", dev.Name, "sample_rate", c.sampleRate)

	go func() {
		defer c.teardown()
		for {
			select {
			case <-loopCtx.Done():
				return
			default:
			}

			if err := stream.Read(); err != nil {
				slog.Debug("audio read error", "device", dev.Name, "error", err)
				return
			}

			// The sink consumes the buffer synchronously before the next
			// read, so no copy is needed here.
			c.sink.Process(buf)
		}
	}()

	return nil
}

// Stop stops the capture loop and releases the device.
func (c *Capturer) Stop() {
	c.teardown()

	c.mu.Lock()
	c.running = false
	c.mu.Unlock()

	_ = portaudio.Terminate()
}

func (c *Capturer) teardown() {
	c.mu.Lock()
	once, cancel, stream := c.once, c.cancel, c.stream
	c.mu.Unlock()

	if once == nil {
		return
	}
	once.Do(func() {
		if cancel != nil {
			cancel()
		}
		if stream != nil {
			_ = stream.Stop()
			_ = stream.Close()
		}
	})
}

// pickInputDevice returns the default input device when usable, otherwise
// scans for the most preferable microphone.
func pickInputDevice() (*portaudio.DeviceInfo, error) {
	if dev, err := portaudio.DefaultInputDevice(); err == nil && dev != nil && dev.MaxInputChannels >= InputChannels {
		return dev, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, errs.Wrap(err, errs.AudioDeviceUnavailable, "device enumeration failed")
	}

	var best *portaudio.DeviceInfo
	for _, dev := range devices {
		if dev.MaxInputChannels < InputChannels {
			continue
		}
		if best == nil || preferDevice(dev.Name, best.Name) {
			best = dev
		}
	}

	if best == nil {
		return nil, errs.New(errs.AudioDeviceUnavailable, "no audio input device available")
	}
	return best, nil
}

// preferDevice prefers built-in microphones over external or virtual ones.
func preferDevice(name, current string) bool {
	preferred := []string{"macbook", "built-in"}
	for _, p := range preferred {
		nameHas := strings.Contains(strings.ToLower(name), p)
		currHas := strings.Contains(strings.ToLower(current), p)
		if nameHas && !currHas {
			return true
		}
	}
	return false
}
