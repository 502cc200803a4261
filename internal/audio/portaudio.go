package audio

import (
	"errors"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"aura/pkg/audioconv"
)

// DeviceSource reads frames from the default portaudio input device.
type DeviceSource struct {
	format    Format
	frameSize int

	mu     sync.Mutex
	stream *portaudio.Stream
	buf    []float32
}

// NewDeviceSource prepares a source for the default microphone. frameSize is
// samples per frame; 320 is 20ms at 16 kHz.
func NewDeviceSource(format Format, frameSize int) *DeviceSource {
	if format.SampleRate == 0 {
		format = DefaultFormat
	}
	if frameSize <= 0 {
		frameSize = 320
	}
	return &DeviceSource{format: format, frameSize: frameSize}
}

// Init initializes the portaudio runtime. Call once per process.
func (s *DeviceSource) Init() error {
	return portaudio.Initialize()
}

// Close tears down the portaudio runtime.
func (s *DeviceSource) Close() {
	portaudio.Terminate()
}

// Start opens and starts the default input stream.
func (s *DeviceSource) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream != nil {
		return errors.New("device source already started")
	}

	s.buf = make([]float32, s.frameSize)
	stream, err := portaudio.OpenDefaultStream(
		s.format.Channels, 0,
		float64(s.format.SampleRate),
		len(s.buf), s.buf,
	)
	if err != nil {
		return err
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return err
	}
	s.stream = stream
	return nil
}

// ReadFrame blocks until the next frame is captured.
func (s *DeviceSource) ReadFrame() (Frame, error) {
	s.mu.Lock()
	stream := s.stream
	s.mu.Unlock()
	if stream == nil {
		return Frame{}, errors.New("device source not started")
	}

	if err := stream.Read(); err != nil {
		return Frame{}, err
	}
	return Frame{
		Samples:   audioconv.Float32ToInt16(s.buf),
		Format:    s.format,
		Timestamp: time.Now(),
	}, nil
}

// Stop closes the stream. Safe to call repeatedly.
func (s *DeviceSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return nil
	}
	err := s.stream.Stop()
	if cerr := s.stream.Close(); err == nil {
		err = cerr
	}
	s.stream = nil
	return err
}
