package network

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/yoshua-msc-thesis/loam-velodyne/internal/loam"
	"github.com/yoshua-msc-thesis/loam-velodyne/internal/loam/wire"
)

// startListener runs a BatchListener on an ephemeral loopback port and
// waits for the socket to come up.
func startListener(t *testing.T, handler BatchHandler) (*BatchListener, net.Addr, context.CancelFunc) {
	t.Helper()
	l := NewBatchListener(BatchListenerConfig{
		Address: "127.0.0.1:0",
		Handler: handler,
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("listener did not shut down")
		}
	})

	deadline := time.Now().Add(5 * time.Second)
	for l.LocalAddr() == nil {
		if time.Now().After(deadline) {
			t.Fatal("listener never bound its socket")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return l, l.LocalAddr(), cancel
}

func TestBatchListener_DeliversDecodedBatches(t *testing.T) {
	received := make(chan wire.PointBatch, 1)
	l, addr, _ := startListener(t, func(b wire.PointBatch) { received <- b })

	conn, err := net.Dial("udp", addr.String())
	if err != nil {
		t.Fatalf("dialing listener: %v", err)
	}
	defer conn.Close()

	// A malformed datagram first; it must be counted and skipped.
	if _, err := conn.Write([]byte("not a batch")); err != nil {
		t.Fatalf("sending garbage: %v", err)
	}

	stamp := time.Unix(1700000000, 0)
	payload, err := wire.MarshalBatch(wire.PointBatch{
		Stamp:  stamp,
		Points: loam.Cloud{{X: 1, Y: 2, Z: 3, Reltime: 0.5}, {X: 4, Y: 5, Z: 6, Reltime: 1}},
	})
	if err != nil {
		t.Fatalf("MarshalBatch: %v", err)
	}
	if _, err := conn.Write(payload); err != nil {
		t.Fatalf("sending batch: %v", err)
	}

	select {
	case batch := <-received:
		if !batch.Stamp.Equal(stamp) {
			t.Errorf("stamp = %v, want %v", batch.Stamp, stamp)
		}
		if len(batch.Points) != 2 {
			t.Errorf("got %d points, want 2", len(batch.Points))
		}
		if batch.Points[0].Reltime != 0.5 {
			t.Errorf("Reltime = %v, want 0.5", batch.Points[0].Reltime)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("handler never received the batch")
	}

	batches, points, malformed := l.Stats()
	if batches != 1 || points != 2 || malformed != 1 {
		t.Errorf("stats = %d/%d/%d, want 1 batch, 2 points, 1 malformed", batches, points, malformed)
	}
}

func TestBatchListener_StopsOnCancel(t *testing.T) {
	l := NewBatchListener(BatchListenerConfig{Address: "127.0.0.1:0"})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Start(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for l.LocalAddr() == nil {
		if time.Now().After(deadline) {
			t.Fatal("listener never bound its socket")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Start returned %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not stop after cancellation")
	}
}

func TestUDPPublisher_SendsAllFiveClasses(t *testing.T) {
	consumer, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("consumer socket: %v", err)
	}
	defer consumer.Close()

	pub, err := NewUDPPublisher(consumer.LocalAddr().String())
	if err != nil {
		t.Fatalf("NewUDPPublisher: %v", err)
	}
	defer pub.Close()

	features := &loam.ScanFeatures{
		SweepID:     "sweep-a",
		FrameID:     "laser",
		Stamp:       time.Unix(1700000000, 0),
		FullCloud:   loam.Cloud{{X: 1, Y: 2, Z: 3}, {X: 4, Y: 5, Z: 6}},
		CornerSharp: loam.Cloud{{X: 1, Y: 2, Z: 3}},
		// CornerLessSharp, SurfaceFlat and SurfaceLessFlat stay empty:
		// consumers still get one datagram per class.
	}
	if err := pub.Publish(features); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	buf := make([]byte, 65535)
	got := map[wire.FeatureClass]int{}
	for i := 0; i < 5; i++ {
		consumer.SetReadDeadline(time.Now().Add(5 * time.Second))
		n, err := consumer.Read(buf)
		if err != nil {
			t.Fatalf("reading datagram %d: %v", i, err)
		}
		msg, err := wire.UnmarshalFeature(buf[:n])
		if err != nil {
			t.Fatalf("decoding datagram %d: %v", i, err)
		}
		if msg.SweepID != "sweep-a" || msg.FrameID != "laser" {
			t.Errorf("datagram %d identifiers = %q/%q", i, msg.SweepID, msg.FrameID)
		}
		got[msg.Class] = len(msg.Points)
	}

	want := map[wire.FeatureClass]int{
		wire.ClassFullCloud:       2,
		wire.ClassCornerSharp:     1,
		wire.ClassCornerLessSharp: 0,
		wire.ClassSurfaceFlat:     0,
		wire.ClassSurfaceLessFlat: 0,
	}
	for class, points := range want {
		if got[class] != points {
			t.Errorf("%s: %d points, want %d", class, got[class], points)
		}
	}
}

func TestUDPPublisher_ChunksOversizeClouds(t *testing.T) {
	consumer, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("consumer socket: %v", err)
	}
	defer consumer.Close()
	consumer.SetReadBuffer(4 << 20)

	pub, err := NewUDPPublisher(consumer.LocalAddr().String())
	if err != nil {
		t.Fatalf("NewUDPPublisher: %v", err)
	}
	defer pub.Close()

	chunk := wire.MaxFeaturePoints("laser", "sweep-a")
	features := &loam.ScanFeatures{
		SweepID:   "sweep-a",
		FrameID:   "laser",
		Stamp:     time.Unix(1700000000, 0),
		FullCloud: make(loam.Cloud, chunk+1),
	}
	if err := pub.Publish(features); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	// One oversize class plus four empty ones: six datagrams in total, the
	// full cloud split into a full chunk and a remainder.
	buf := make([]byte, 65535)
	fullCloudSizes := []int{}
	for i := 0; i < 6; i++ {
		consumer.SetReadDeadline(time.Now().Add(5 * time.Second))
		n, err := consumer.Read(buf)
		if err != nil {
			t.Fatalf("reading datagram %d: %v", i, err)
		}
		msg, err := wire.UnmarshalFeature(buf[:n])
		if err != nil {
			t.Fatalf("decoding datagram %d: %v", i, err)
		}
		if msg.Class == wire.ClassFullCloud {
			fullCloudSizes = append(fullCloudSizes, len(msg.Points))
		}
	}
	if len(fullCloudSizes) != 2 || fullCloudSizes[0] != chunk || fullCloudSizes[1] != 1 {
		t.Errorf("full cloud chunks = %v, want [%d 1]", fullCloudSizes, chunk)
	}
}
