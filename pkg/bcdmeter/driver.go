package bcdmeter

import (
	"io"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/jacobsa/go-serial/serial"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/fqueze/isw8001-power-profiling/pkg/framebuf"
	"github.com/fqueze/isw8001-power-profiling/pkg/types"
)

// DefaultMinInterval is the minimum spacing between read requests. The meter
// garbles back-to-back requests.
const DefaultMinInterval = 50 * time.Millisecond

var _ types.MeterDriver = (*Driver)(nil)

// requestThreshold is how many frame bytes (marker included) must have
// arrived before the next request may pre-empt the in-flight frame: marker,
// voltage, current and power are in, only power factor and frequency get
// sacrificed for the cycle.
const requestThreshold = 1 + MinPayload

// readRequest asks the meter to transmit one measurement frame.
var readRequest = []byte{0x44}

// Config holds the serial session parameters.
type Config struct {
	Device   string
	BaudRate uint
	// MinInterval overrides DefaultMinInterval when positive.
	MinInterval time.Duration
}

// Driver owns exactly one serial connection to the meter and sustains
// continuous acquisition, trading frame completeness for freshness.
type Driver struct {
	port  io.ReadWriteCloser
	clock clock.Clock
	log   *logrus.Logger

	mu          sync.Mutex
	framer      *framebuf.MarkerFramer
	minInterval time.Duration
	// enabled is read at emission time: bytes already on the wire when
	// auto-poll is disabled still get drained and decoded, but must not
	// emit events or trigger re-requests.
	enabled bool
	closed  bool

	lastRequest   time.Time
	intervalTimer *clock.Timer
	fallbackTimer *clock.Timer

	subs    map[int]types.MeasurementHandler
	nextSub int

	readDone sync.WaitGroup
}

// Open establishes the serial session and starts the reader. Flow control
// stays disabled: legitimate digit bytes collide with the XON/XOFF values
// and enabling it corrupts data.
func Open(cfg Config) (*Driver, error) {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 9600
	}
	options := serial.OpenOptions{
		PortName:        cfg.Device,
		BaudRate:        cfg.BaudRate,
		DataBits:        8,
		StopBits:        1,
		ParityMode:      serial.PARITY_NONE,
		MinimumReadSize: 1,
	}
	port, err := serial.Open(options)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open serial port %s", cfg.Device)
	}
	return newDriver(port, clock.New(), logrus.StandardLogger(), cfg.MinInterval), nil
}

func newDriver(port io.ReadWriteCloser, clk clock.Clock, log *logrus.Logger, minInterval time.Duration) *Driver {
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	d := &Driver{
		port:        port,
		clock:       clk,
		log:         log,
		framer:      framebuf.NewMarkerFramer(),
		minInterval: minInterval,
		subs:        make(map[int]types.MeasurementHandler),
	}
	d.readDone.Add(1)
	go d.readLoop()
	return d
}

func (d *Driver) readLoop() {
	defer d.readDone.Done()
	buf := make([]byte, 256)
	for {
		n, err := d.port.Read(buf)
		if n > 0 {
			d.handleChunk(buf[:n])
		}
		if err != nil {
			d.mu.Lock()
			closed := d.closed
			d.mu.Unlock()
			if !closed {
				d.log.Errorf("bcdmeter: serial read failed: %v", err)
			}
			return
		}
	}
}

// handleChunk drains every frame the chunk completes in an explicit loop,
// then lets the scheduler decide whether to re-request.
func (d *Driver) handleChunk(chunk []byte) {
	var emit []*types.Measurement
	var handlers []types.MeasurementHandler

	d.mu.Lock()
	d.framer.Append(chunk, d.clock.Now())
	gotFrame := false
	for {
		frame, ok := d.framer.Next()
		if !ok {
			break
		}
		gotFrame = true
		if len(frame.Payload) < MinPayload {
			d.log.Debugf("bcdmeter: dropping %d-byte frame", len(frame.Payload))
			continue
		}
		if !d.enabled {
			continue
		}
		m := DecodePayload(frame.Payload)
		m.Timestamp = frame.Start
		emit = append(emit, m)
	}
	if d.enabled && (gotFrame || d.framer.PendingLen() >= requestThreshold) {
		d.scheduleRequestLocked()
	}
	if len(emit) > 0 {
		handlers = d.handlersLocked()
	}
	d.mu.Unlock()

	for _, m := range emit {
		for _, h := range handlers {
			h(m)
		}
	}
}

// scheduleRequestLocked issues the next read request now if the minimum
// inter-request interval has elapsed, or schedules it for exactly when it
// will have.
func (d *Driver) scheduleRequestLocked() {
	elapsed := d.clock.Now().Sub(d.lastRequest)
	if elapsed >= d.minInterval {
		d.sendRequestLocked()
		return
	}
	if d.intervalTimer == nil {
		d.intervalTimer = d.clock.AfterFunc(d.minInterval-elapsed, d.onIntervalTimer)
	}
}

func (d *Driver) onIntervalTimer() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.intervalTimer = nil
	if d.enabled && !d.closed {
		d.sendRequestLocked()
	}
}

// onFallback re-issues the request unconditionally: the previous response
// was dropped or never sent, and without a fresh request acquisition would
// stall forever.
func (d *Driver) onFallback() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.enabled && !d.closed {
		d.sendRequestLocked()
	}
}

func (d *Driver) sendRequestLocked() {
	if _, err := d.port.Write(readRequest); err != nil {
		d.log.Errorf("bcdmeter: failed to send read request: %v", err)
	} else {
		d.lastRequest = d.clock.Now()
	}
	// Every attempt resets the fallback timer, failed writes included: the
	// fallback retries them instead of letting acquisition stall.
	if d.fallbackTimer != nil {
		d.fallbackTimer.Stop()
	}
	d.fallbackTimer = d.clock.AfterFunc(d.fallbackDelay(), d.onFallback)
}

func (d *Driver) fallbackDelay() time.Duration {
	delay := d.minInterval + 50*time.Millisecond
	if delay < 100*time.Millisecond {
		delay = 100 * time.Millisecond
	}
	return delay
}

// EnableAutoMode starts continuous acquisition with an immediate first
// request.
func (d *Driver) EnableAutoMode() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return types.ErrClosed
	}
	if d.enabled {
		return nil
	}
	d.enabled = true
	d.sendRequestLocked()
	return nil
}

// DisableAutoMode stops acquisition and cancels all pending timers. In-flight
// bytes are still drained and decoded but no longer emit events.
func (d *Driver) DisableAutoMode() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.disableLocked()
	return nil
}

func (d *Driver) disableLocked() {
	d.enabled = false
	if d.intervalTimer != nil {
		d.intervalTimer.Stop()
		d.intervalTimer = nil
	}
	if d.fallbackTimer != nil {
		d.fallbackTimer.Stop()
		d.fallbackTimer = nil
	}
}

// Subscribe registers a measurement handler. Handlers run synchronously at
// decode time and should return quickly.
func (d *Driver) Subscribe(handler types.MeasurementHandler) (unsubscribe func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextSub
	d.nextSub++
	d.subs[id] = handler
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.subs, id)
	}
}

func (d *Driver) handlersLocked() []types.MeasurementHandler {
	handlers := make([]types.MeasurementHandler, 0, len(d.subs))
	for _, h := range d.subs {
		handlers = append(handlers, h)
	}
	return handlers
}

// Close disables auto-poll and releases the connection.
func (d *Driver) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.disableLocked()
	d.closed = true
	err := d.port.Close()
	d.framer.Reset()
	d.mu.Unlock()
	d.readDone.Wait()
	return errors.Wrap(err, "failed to close serial port")
}
