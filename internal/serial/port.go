package serial

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

// DefaultRxBufferBytes mirrors a generous UART receive FIFO. When it is full
// the oldest queued byte is dropped to make room and counted as an overrun,
// so the queue always holds the most recent traffic.
const DefaultRxBufferBytes = 4096

// Port is one serial channel. A pump goroutine moves received bytes into a
// bounded queue that Available and NextByte read without blocking.
type Port struct {
	name string
	rw   io.ReadWriteCloser

	rx       chan byte
	overruns atomic.Uint64

	wmu sync.Mutex

	errMu   sync.Mutex
	lastErr error

	closeOnce sync.Once
	done      chan struct{}
	readerWG  sync.WaitGroup
}

// NewPort wraps rw and starts the receive pump.
func NewPort(name string, rw io.ReadWriteCloser) *Port {
	return newPort(name, rw, DefaultRxBufferBytes)
}

func newPort(name string, rw io.ReadWriteCloser, rxBytes int) *Port {
	if rxBytes <= 0 {
		rxBytes = DefaultRxBufferBytes
	}
	p := &Port{
		name: name,
		rw:   rw,
		rx:   make(chan byte, rxBytes),
		done: make(chan struct{}),
	}
	p.readerWG.Add(1)
	go p.pump()
	return p
}

func (p *Port) pump() {
	defer p.readerWG.Done()
	buf := make([]byte, 256)
	for {
		n, err := p.rw.Read(buf)
		for i := 0; i < n; i++ {
			if !p.push(buf[i]) {
				return
			}
		}
		if err != nil {
			select {
			case <-p.done:
			default:
				p.setErr(err)
			}
			return
		}
	}
}

// push queues b, evicting the oldest byte while the queue is full. It
// reports false once the port is closed.
func (p *Port) push(b byte) bool {
	for {
		select {
		case p.rx <- b:
			return true
		case <-p.done:
			return false
		default:
		}
		select {
		case <-p.rx:
			p.overruns.Add(1)
		default:
			// The reader drained it first; retry the send.
		}
	}
}

// Name is the device path or label given at open.
func (p *Port) Name() string {
	if p == nil {
		return ""
	}
	return p.name
}

// Available reports whether at least one received byte is waiting. It never
// blocks.
func (p *Port) Available() bool {
	if p == nil {
		return false
	}
	return len(p.rx) > 0
}

// Buffered is the number of received bytes waiting to be read.
func (p *Port) Buffered() int {
	if p == nil {
		return 0
	}
	return len(p.rx)
}

// Discard drops every queued byte and returns how many were dropped. Use it
// before reading when only traffic from now on is wanted.
func (p *Port) Discard() int {
	if p == nil {
		return 0
	}
	n := 0
	for {
		select {
		case <-p.rx:
			n++
		default:
			return n
		}
	}
}

// NextByte returns the next received byte. ok is false when nothing is
// available yet; that is not an error.
func (p *Port) NextByte() (b byte, ok bool) {
	if p == nil {
		return 0, false
	}
	select {
	case b = <-p.rx:
		return b, true
	default:
		return 0, false
	}
}

// Write sends b. Writers are serialized.
func (p *Port) Write(b []byte) (int, error) {
	if p == nil {
		return 0, fmt.Errorf("serial: port is nil")
	}
	select {
	case <-p.done:
		return 0, fmt.Errorf("serial: %s is closed", p.name)
	default:
	}
	p.wmu.Lock()
	defer p.wmu.Unlock()
	return p.rw.Write(b)
}

func (p *Port) WriteString(s string) (int, error) {
	return p.Write([]byte(s))
}

// WriteLine writes s followed by CR LF.
func (p *Port) WriteLine(s string) error {
	_, err := p.Write([]byte(s + "\r\n"))
	return err
}

func (p *Port) WriteByte(c byte) error {
	_, err := p.Write([]byte{c})
	return err
}

// Overruns is the number of queued bytes evicted because the receive buffer
// was full.
func (p *Port) Overruns() uint64 {
	if p == nil {
		return 0
	}
	return p.overruns.Load()
}

// Err returns the error that stopped the receive pump, if any.
func (p *Port) Err() error {
	if p == nil {
		return nil
	}
	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.lastErr
}

func (p *Port) setErr(err error) {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	p.lastErr = err
}

// Close stops the pump and closes the underlying stream. It is idempotent.
func (p *Port) Close() error {
	if p == nil {
		return nil
	}
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		err = p.rw.Close()
		p.readerWG.Wait()
	})
	return err
}
