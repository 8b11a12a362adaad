package iswmeter

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

// MeterName identifies measurements produced by this driver.
const MeterName = "isw8001"

var _ types.MeterDriver = (*Driver)(nil)

const (
	// DefaultQueryTimeout is the reply deadline for ordinary queries.
	DefaultQueryTimeout = 1000 * time.Millisecond
	// IdentifyTimeout is the longer deadline for the identification query,
	// which the device answers noticeably slower.
	IdentifyTimeout = 3000 * time.Millisecond
	// settleDelay is how long a setter command takes to apply. The device
	// never acknowledges setters, so SendCommand blocks this long before
	// returning.
	settleDelay = 200 * time.Millisecond

	cmdIdentify = "ID"
	cmdAutoOn   = "AUTO 1"
	cmdAutoOff  = "AUTO 0"

	// Received lines waiting to be claimed by a query. Overflow drops the
	// oldest line; in auto mode the device outruns slow callers.
	lineQueueSize = 16
)

// Config holds the serial session parameters.
type Config struct {
	// Device is the serial port path, e.g. /dev/ttyUSB0.
	Device   string
	BaudRate uint
	// SoftwareFlowControl records the device's XON/XOFF setting. The port
	// itself is always opened without flow control: inbound XON/XOFF bytes
	// are filtered out by the framer before decoding, and transmission never
	// pauses on XOFF. Commands are short enough that the device cannot fall
	// behind.
	SoftwareFlowControl bool
}

// Driver owns exactly one serial connection to an ISW8001. Framing, decoding
// and event emission run sequentially under one mutex; the reader goroutine
// only delivers chunks.
type Driver struct {
	port  io.ReadWriteCloser
	clock clock.Clock
	log   *logrus.Logger

	mu     sync.Mutex
	framer *framebuf.LineFramer
	// lines received but not claimed by a query, cleared on every send
	lines    chan string
	autoMode bool
	closing  bool
	closed   bool
	closedCh chan struct{}

	subs    map[int]types.MeasurementHandler
	nextSub int

	// last-known device state from decoded lines. Not authoritative: the
	// front panel can change it without us seeing anything.
	lastFunction     string
	lastVoltageRange string
	lastCurrentRange string

	// queryTok serializes queries. Goroutines blocked on a channel send are
	// released in arrival order, which gives overlapping queries the
	// documented first-come resolution against the shared line queue.
	queryTok chan struct{}

	readDone sync.WaitGroup
}

// Open establishes the serial session and starts the reader.
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
	return newDriver(port, clock.New(), logrus.StandardLogger()), nil
}

// newDriver wires a driver onto an already-open port. Tests pass a fake port
// and a mock clock.
func newDriver(port io.ReadWriteCloser, clk clock.Clock, log *logrus.Logger) *Driver {
	d := &Driver{
		port:     port,
		clock:    clk,
		log:      log,
		framer:   framebuf.NewLineFramer(),
		lines:    make(chan string, lineQueueSize),
		closedCh: make(chan struct{}),
		subs:     make(map[int]types.MeasurementHandler),
		queryTok: make(chan struct{}, 1),
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
				d.log.Errorf("isw8001: serial read failed: %v", err)
			}
			return
		}
	}
}

// handleChunk frames and decodes everything the chunk completes. Residual
// bytes stay buffered; the loop below is the only framing driver, so bursty
// input cannot grow the stack.
func (d *Driver) handleChunk(chunk []byte) {
	var emit []*types.Measurement
	var handlers []types.MeasurementHandler

	d.mu.Lock()
	d.framer.Append(chunk)
	for {
		line, ok := d.framer.Next()
		if !ok {
			break
		}
		d.queueLine(line)
		m := DecodeLine(line)
		if m == nil {
			d.log.Debugf("isw8001: ignoring line %q", line)
			continue
		}
		d.updateStateLocked(m)
		// In auto mode every decoded line is also a measurement event,
		// whether or not a query is waiting for it.
		if d.autoMode {
			m.Timestamp = d.clock.Now()
			emit = append(emit, m)
		}
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

// queueLine appends to the unclaimed-line queue, dropping the oldest entry
// when full.
func (d *Driver) queueLine(line string) {
	for {
		select {
		case d.lines <- line:
			return
		default:
			select {
			case <-d.lines:
			default:
			}
		}
	}
}

// updateStateLocked records last-known state and back-fills labels a line
// did not mention, so every event carries the current ranges.
func (d *Driver) updateStateLocked(m *types.Measurement) {
	if m.Function != "" {
		d.lastFunction = m.Function
	}
	if m.VoltageRange != "" {
		d.lastVoltageRange = m.VoltageRange
	} else {
		m.VoltageRange = d.lastVoltageRange
	}
	if m.CurrentRange != "" {
		d.lastCurrentRange = m.CurrentRange
	} else {
		m.CurrentRange = d.lastCurrentRange
	}
}

func (d *Driver) handlersLocked() []types.MeasurementHandler {
	handlers := make([]types.MeasurementHandler, 0, len(d.subs))
	for _, h := range d.subs {
		handlers = append(handlers, h)
	}
	return handlers
}

// send clears the unclaimed-line queue and transmits text with the CR
// terminator. Commands are case-insensitive on the device side; the text is
// sent as given.
func (d *Driver) send(text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return types.ErrClosed
	}
	for {
		select {
		case <-d.lines:
		default:
			_, err := d.port.Write([]byte(text + "\r"))
			return errors.Wrapf(err, "failed to send %q", text)
		}
	}
}

// SendCommand transmits a setter command fire-and-forget, then waits the
// settle delay. There is no acknowledgement; after the delay the caller may
// assume the change applied.
func (d *Driver) SendCommand(text string) error {
	if err := d.send(text); err != nil {
		return err
	}
	d.clock.Sleep(settleDelay)
	return nil
}

// Query transmits text and returns the next line the device sends, or a
// TimeoutError. timeout <= 0 selects DefaultQueryTimeout. Callers must not
// overlap queries; if they do anyway, queries resolve in strict first-come
// order.
func (d *Driver) Query(text string, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	select {
	case d.queryTok <- struct{}{}:
	case <-d.closedCh:
		return "", types.ErrClosed
	}
	defer func() { <-d.queryTok }()

	if err := d.send(text); err != nil {
		return "", err
	}
	timer := d.clock.Timer(timeout)
	defer timer.Stop()
	select {
	case line := <-d.lines:
		return line, nil
	case <-timer.C:
		return "", &types.TimeoutError{Command: text, Timeout: timeout}
	case <-d.closedCh:
		return "", types.ErrClosed
	}
}

// Identify asks the device for its identification string.
func (d *Driver) Identify() (string, error) {
	return d.Query(cmdIdentify, IdentifyTimeout)
}

// EnableAutoMode switches the device to continuous push mode. Every line
// decoded while enabled is broadcast to subscribers.
func (d *Driver) EnableAutoMode() error {
	d.mu.Lock()
	d.autoMode = true
	d.mu.Unlock()
	return d.SendCommand(cmdAutoOn)
}

// DisableAutoMode stops continuous push mode.
func (d *Driver) DisableAutoMode() error {
	d.mu.Lock()
	d.autoMode = false
	d.mu.Unlock()
	return d.SendCommand(cmdAutoOff)
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

// RangeState returns the last-known range labels. They may be stale if the
// device state changed from the front panel.
func (d *Driver) RangeState() (voltageRange, currentRange string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastVoltageRange, d.lastCurrentRange
}

// Function returns the last-known measurement function.
func (d *Driver) Function() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastFunction
}

// Close disables auto mode and releases the connection. Pending queries fail
// with ErrClosed; nothing persists for a later reconnect.
func (d *Driver) Close() error {
	d.mu.Lock()
	if d.closed || d.closing {
		d.mu.Unlock()
		return nil
	}
	d.closing = true
	wasAuto := d.autoMode
	d.autoMode = false
	d.mu.Unlock()

	if wasAuto {
		// Best effort: the device keeps pushing otherwise.
		if err := d.send(cmdAutoOff); err != nil {
			d.log.Debugf("isw8001: auto-off on close failed: %v", err)
		}
	}

	d.mu.Lock()
	d.closed = true
	close(d.closedCh)
	err := d.port.Close()
	d.framer.Reset()
	d.mu.Unlock()
	d.readDone.Wait()
	return errors.Wrap(err, "failed to close serial port")
}
