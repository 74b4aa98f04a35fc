// Package audio handles device discovery, selection, and PCM capture streams.
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const (
	SampleRate = 16000

	fragmentSizeBytes = 640 // 20ms @ 16kHz mono s16
	monitorSuffix     = ".monitor"
)

// ErrNoAudioSource means neither the preferred source nor the fallback is usable.
var ErrNoAudioSource = errors.New("no usable audio source")

// Device describes one Pulse input source.
type Device struct {
	ID             string
	Description    string
	State          string
	Available      bool
	Muted          bool
	Default        bool
	Monitor        bool
	DefaultMonitor bool
}

// Selection is the resolved capture source plus optional fallback warning context.
type Selection struct {
	Device   Device
	Warning  string
	Fallback bool
}

func newClient() (*pulse.Client, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("faloodai"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}
	return client, nil
}

// ListDevices returns Pulse sources including sink monitors.
func ListDevices(_ context.Context) ([]Device, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	defaultSource, err := client.DefaultSource()
	if err != nil {
		return nil, fmt.Errorf("read default source: %w", err)
	}
	defaultID := defaultSource.ID()

	defaultMonitorID := ""
	if sink, err := client.DefaultSink(); err == nil {
		defaultMonitorID = sink.ID() + monitorSuffix
	}

	var sourceInfos pulseproto.GetSourceInfoListReply
	if err := client.RawRequest(&pulseproto.GetSourceInfoList{}, &sourceInfos); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	devices := make([]Device, 0, len(sourceInfos))
	for _, source := range sourceInfos {
		if source == nil {
			continue
		}
		devices = append(devices, Device{
			ID:             source.SourceName,
			Description:    source.Device,
			State:          sourceStateString(source.State),
			Available:      sourceAvailable(source),
			Muted:          source.Mute,
			Default:        source.SourceName == defaultID,
			Monitor:        strings.HasSuffix(source.SourceName, monitorSuffix),
			DefaultMonitor: defaultMonitorID != "" && source.SourceName == defaultMonitorID,
		})
	}
	return devices, nil
}

// SelectDevice resolves audio.input/audio.fallback preferences against live devices.
func SelectDevice(ctx context.Context, input string, fallback string) (Selection, error) {
	devices, err := ListDevices(ctx)
	if err != nil {
		return Selection{}, err
	}
	return selectDeviceFromList(devices, input, fallback)
}

// selectDeviceFromList applies selection policy to a pre-fetched device list.
//
// "monitor" names the default sink's monitor (what the call is playing) and
// "default" names the default source (the microphone). Any other value is
// matched against device id and description. A preferred source that is
// missing, unavailable, or muted falls back instead of failing.
func selectDeviceFromList(devices []Device, input string, fallback string) (Selection, error) {
	if len(devices) == 0 {
		return Selection{}, fmt.Errorf("%w: no audio input devices found", ErrNoAudioSource)
	}

	input = normalizePreference(input)
	fallback = normalizePreference(fallback)

	primary := findPreferred(devices, input)
	if primary != nil && usable(*primary) {
		return Selection{Device: *primary}, nil
	}

	reason := "missing"
	primaryName := input
	if primary != nil {
		primaryName = primary.ID
		reason = "unavailable"
		if primary.Muted {
			reason = "muted"
		}
	}

	alt := findPreferred(devices, fallback)
	if alt == nil {
		return Selection{}, fmt.Errorf("%w: audio.input %q is %s and fallback %q not found", ErrNoAudioSource, primaryName, reason, fallback)
	}
	if !alt.Available {
		return Selection{}, fmt.Errorf("%w: audio fallback device %q is not available", ErrNoAudioSource, alt.ID)
	}
	if alt.Muted {
		return Selection{}, fmt.Errorf("%w: audio fallback device %q is muted", ErrNoAudioSource, alt.ID)
	}

	return Selection{
		Device:   *alt,
		Warning:  fmt.Sprintf("audio.input %q is %s; falling back to %q", primaryName, reason, alt.ID),
		Fallback: primary == nil || primary.ID != alt.ID,
	}, nil
}

func normalizePreference(v string) string {
	v = strings.TrimSpace(strings.ToLower(v))
	if v == "" {
		return "default"
	}
	return v
}

func findPreferred(devices []Device, pref string) *Device {
	for i := range devices {
		dev := &devices[i]
		switch pref {
		case "default":
			if dev.Default {
				return dev
			}
		case "monitor":
			if dev.DefaultMonitor {
				return dev
			}
		default:
			if deviceMatches(*dev, pref) {
				return dev
			}
		}
	}
	return nil
}

func usable(d Device) bool {
	return d.Available && !d.Muted
}

// deviceMatches reports whether a search term matches a device id or description.
func deviceMatches(device Device, term string) bool {
	if term == "" {
		return false
	}
	id := strings.ToLower(device.ID)
	desc := strings.ToLower(device.Description)
	return strings.Contains(id, term) || strings.Contains(desc, term)
}

// Capture records one Pulse source continuously and hands out sealed slices
// of the accumulated PCM without interrupting the stream.
type Capture struct {
	device Device

	client *pulse.Client
	stream *pulse.RecordStream

	mu      sync.Mutex
	pending []byte
	paused  bool
	halted  bool
	closed  bool

	inflight sync.WaitGroup
	bytes    atomic.Int64
	level    atomic.Uint64
}

// StartCapture creates and starts a 16kHz mono s16 record stream.
func StartCapture(_ context.Context, selected Device) (*Capture, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}

	source, err := client.SourceByID(selected.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", selected.ID, err)
	}

	capture := &Capture{device: selected, client: client}

	writer := pulse.NewWriter(writerFunc(capture.onPCM), pulseproto.FormatInt16LE)
	stream, err := client.NewRecord(
		writer,
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(SampleRate),
		pulse.RecordBufferFragmentSize(fragmentSizeBytes),
		pulse.RecordMediaName("faloodai practice session"),
	)
	if err != nil {
		_ = capture.Close()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}

	capture.stream = stream
	stream.Start()
	return capture, nil
}

// Device returns capture metadata for logging and diagnostics.
func (c *Capture) Device() Device {
	return c.device
}

// BytesCaptured reports total bytes accepted from Pulse.
func (c *Capture) BytesCaptured() int64 {
	return c.bytes.Load()
}

// Level returns the loudness of the most recent fragment.
func (c *Capture) Level() float64 {
	return math.Float64frombits(c.level.Load())
}

// Seal detaches and returns the PCM accumulated since the previous seal.
func (c *Capture) Seal() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.pending
	c.pending = nil
	return out
}

// Pause corks the stream without releasing it.
func (c *Capture) Pause() {
	c.mu.Lock()
	if c.halted || c.paused {
		c.mu.Unlock()
		return
	}
	c.paused = true
	c.mu.Unlock()

	if c.stream != nil {
		c.stream.Stop()
	}
	c.level.Store(0)
}

// Resume uncorks a paused stream.
func (c *Capture) Resume() {
	c.mu.Lock()
	if c.halted || !c.paused {
		c.mu.Unlock()
		return
	}
	c.paused = false
	c.mu.Unlock()

	if c.stream != nil {
		c.stream.Start()
	}
}

// Halt stops frame delivery and waits for in-flight callbacks. Pending PCM
// stays available to Seal.
func (c *Capture) Halt() {
	c.mu.Lock()
	if c.halted {
		c.mu.Unlock()
		return
	}
	c.halted = true
	c.mu.Unlock()

	if c.stream != nil {
		c.stream.Stop()
	}
	c.inflight.Wait()
	c.level.Store(0)
}

// Close halts capture and releases the stream and client exactly once.
func (c *Capture) Close() error {
	c.Halt()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	if c.stream != nil {
		c.stream.Close()
	}
	if c.client != nil {
		c.client.Close()
	}
	return nil
}

// onPCM receives raw Pulse frames and appends them to the pending buffer.
func (c *Capture) onPCM(buffer []byte) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}

	c.mu.Lock()
	if c.halted {
		c.mu.Unlock()
		return 0, io.EOF
	}
	if c.paused {
		c.mu.Unlock()
		return len(buffer), nil
	}
	// Guard Add under the same mutex as c.halted to avoid Add/Wait races.
	c.inflight.Add(1)
	c.pending = append(c.pending, buffer...)
	c.mu.Unlock()
	defer c.inflight.Done()

	c.bytes.Add(int64(len(buffer)))
	c.level.Store(math.Float64bits(Loudness(buffer)))
	return len(buffer), nil
}

// writerFunc adapts a function to io.Writer for pulse.NewWriter.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}

// sourceStateString maps Pulse source state constants to human-readable values.
func sourceStateString(state uint32) string {
	switch state {
	case 0:
		return "running"
	case 1:
		return "idle"
	case 2:
		return "suspended"
	default:
		return fmt.Sprintf("unknown(%d)", state)
	}
}

// sourceAvailable maps Pulse source port availability to a simple boolean.
func sourceAvailable(source *pulseproto.GetSourceInfoReply) bool {
	if source == nil {
		return false
	}
	if len(source.Ports) == 0 {
		return true
	}
	for _, port := range source.Ports {
		if port.Name != source.ActivePortName {
			continue
		}
		// PulseAudio values: unknown=0, no=1, yes=2.
		return port.Available == 0 || port.Available == 2
	}
	return true
}
