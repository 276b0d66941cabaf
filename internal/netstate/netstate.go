// Package netstate tracks whether the device currently has network
// connectivity. Sync components consult it before touching the remote
// store and react to transitions back online.
package netstate

import (
	"context"
	"log"
	"net"
	"os"
	"sync"
	"time"
)

// Network reports connectivity.
type Network interface {
	// Online reports the current connectivity state.
	Online() bool

	// Transitions returns a channel that receives the new state on
	// every online/offline flip. The channel is buffered; slow
	// consumers miss intermediate flips, not the latest state.
	Transitions() <-chan bool
}

// Flag is a settable Network used by tests and by deployments that
// learn connectivity from elsewhere.
type Flag struct {
	mu     sync.Mutex
	online bool
	ch     chan bool
}

// NewFlag creates a Flag in the given initial state.
func NewFlag(online bool) *Flag {
	return &Flag{online: online, ch: make(chan bool, 8)}
}

// Online implements Network.
func (f *Flag) Online() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online
}

// Transitions implements Network.
func (f *Flag) Transitions() <-chan bool {
	return f.ch
}

// Set updates the state and publishes a transition if it changed.
func (f *Flag) Set(online bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.online == online {
		return
	}
	f.online = online
	select {
	case f.ch <- online:
	default:
	}
}

// Probe is a Network that checks reachability of a TCP endpoint on an
// interval.
type Probe struct {
	flag     *Flag
	addr     string
	interval time.Duration
	timeout  time.Duration
	logger   *log.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewProbe starts probing addr (host:port) every interval. The first
// probe runs before NewProbe returns so the initial state is real.
//
// If logger is nil, a default logger writing to stderr is used.
func NewProbe(addr string, interval time.Duration, logger *log.Logger) *Probe {
	if logger == nil {
		logger = log.New(os.Stderr, "[netstate] ", log.LstdFlags)
	}
	p := &Probe{
		addr:     addr,
		interval: interval,
		timeout:  3 * time.Second,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	p.flag = NewFlag(p.check())
	go p.loop()
	return p
}

// Online implements Network.
func (p *Probe) Online() bool {
	return p.flag.Online()
}

// Transitions implements Network.
func (p *Probe) Transitions() <-chan bool {
	return p.flag.Transitions()
}

// Stop halts the probe loop.
func (p *Probe) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	<-p.done
}

func (p *Probe) loop() {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			online := p.check()
			if online != p.flag.Online() {
				p.logger.Printf("Network state changed: online=%v", online)
			}
			p.flag.Set(online)
		}
	}
}

func (p *Probe) check() bool {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", p.addr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
