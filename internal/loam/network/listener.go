// Package network provides the UDP transport for the registration
// pipeline: a batch listener on the ingest side and a feature publisher on
// the output side.
package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/yoshua-msc-thesis/loam-velodyne/internal/loam/wire"
	"github.com/yoshua-msc-thesis/loam-velodyne/internal/monitoring"
)

// BatchHandler consumes one decoded point batch. Handlers run on the
// listener goroutine, in arrival order, one at a time; batches are never
// reordered or dropped by the listener itself.
type BatchHandler func(batch wire.PointBatch)

// BatchListenerConfig configures a BatchListener.
type BatchListenerConfig struct {
	Address     string        // UDP bind address, e.g. ":7502"
	RcvBuf      int           // socket receive buffer (0 = OS default)
	LogInterval time.Duration // statistics logging interval (0 = 10s)
	Handler     BatchHandler
}

// BatchListener receives raw point-batch datagrams and hands each decoded
// batch to the configured handler.
type BatchListener struct {
	address     string
	rcvBuf      int
	logInterval time.Duration
	handler     BatchHandler
	buffer      []byte

	mu        sync.Mutex
	localAddr net.Addr
	batches   int64
	points    int64
	badGrams  int64
}

// NewBatchListener creates a listener from config.
func NewBatchListener(config BatchListenerConfig) *BatchListener {
	interval := config.LogInterval
	if interval == 0 {
		interval = 10 * time.Second
	}
	return &BatchListener{
		address:     config.Address,
		rcvBuf:      config.RcvBuf,
		logInterval: interval,
		handler:     config.Handler,
		buffer:      make([]byte, 65535),
	}
}

// Start listens for batch datagrams until the context is cancelled or an
// unrecoverable socket error occurs.
func (l *BatchListener) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", l.address)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP: %w", err)
	}
	defer conn.Close()

	l.mu.Lock()
	l.localAddr = conn.LocalAddr()
	l.mu.Unlock()

	if l.rcvBuf > 0 {
		if err := conn.SetReadBuffer(l.rcvBuf); err != nil {
			monitoring.Logf("warning: failed to set UDP receive buffer to %d bytes: %v", l.rcvBuf, err)
		}
	}
	monitoring.Logf("listening for point batches on %s", conn.LocalAddr())

	go l.logStats(ctx)

	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("batch listener shutting down")
			return ctx.Err()
		default:
		}

		// Read deadline keeps the loop responsive to cancellation.
		if err := conn.SetReadDeadline(time.Now().Add(time.Second)); err != nil {
			return fmt.Errorf("setting read deadline: %w", err)
		}
		n, _, err := conn.ReadFromUDP(l.buffer)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			return fmt.Errorf("reading datagram: %w", err)
		}

		batch, err := wire.UnmarshalBatch(l.buffer[:n])
		if err != nil {
			l.mu.Lock()
			l.badGrams++
			l.mu.Unlock()
			continue
		}

		l.mu.Lock()
		l.batches++
		l.points += int64(len(batch.Points))
		l.mu.Unlock()

		if l.handler != nil {
			l.handler(batch)
		}
	}
}

// logStats periodically reports ingest counters until ctx is cancelled.
func (l *BatchListener) logStats(ctx context.Context) {
	ticker := time.NewTicker(l.logInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.mu.Lock()
			batches, points, bad := l.batches, l.points, l.badGrams
			l.mu.Unlock()
			monitoring.Logf("ingest: %d batches, %d points, %d malformed datagrams", batches, points, bad)
		}
	}
}

// LocalAddr returns the bound socket address, or nil before Start has bound
// it. Useful when listening on an ephemeral port.
func (l *BatchListener) LocalAddr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.localAddr
}

// Stats returns the cumulative batch, point and malformed-datagram counts.
func (l *BatchListener) Stats() (batches, points, malformed int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.batches, l.points, l.badGrams
}
