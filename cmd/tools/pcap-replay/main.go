// Command pcap-replay replays recorded point-batch datagrams from a PCAP
// capture into a running scanreg listener, optionally pacing them by their
// original capture timestamps.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/yoshua-msc-thesis/loam-velodyne/internal/loam/wire"
)

var (
	pcapFile = flag.String("pcap", "", "PCAP file containing captured batch datagrams")
	udpPort  = flag.Int("udp-port", 7502, "UDP port the batches were captured on")
	target   = flag.String("target", "127.0.0.1:7502", "address to replay datagrams to")
	pace     = flag.Bool("pace", true, "pace replay to the original capture timing")
)

func main() {
	flag.Parse()
	if *pcapFile == "" {
		log.Fatal("missing required -pcap flag")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := replay(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("replay failed: %v", err)
	}
}

func replay(ctx context.Context) error {
	handle, err := pcap.OpenOffline(*pcapFile)
	if err != nil {
		return fmt.Errorf("failed to open PCAP file %s: %w", *pcapFile, err)
	}
	defer handle.Close()

	filter := fmt.Sprintf("udp port %d", *udpPort)
	if err := handle.SetBPFFilter(filter); err != nil {
		return fmt.Errorf("failed to set BPF filter %q: %w", filter, err)
	}

	addr, err := net.ResolveUDPAddr("udp", *target)
	if err != nil {
		return fmt.Errorf("failed to resolve target address: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return fmt.Errorf("failed to dial target: %w", err)
	}
	defer conn.Close()

	source := gopacket.NewPacketSource(handle, handle.LinkType())
	var (
		sent      int
		points    int
		skipped   int
		lastStamp time.Time
		start     = time.Now()
	)

	for {
		select {
		case <-ctx.Done():
			log.Printf("replay stopped after %d datagrams", sent)
			return ctx.Err()
		case packet := <-source.Packets():
			if packet == nil {
				log.Printf("replay complete: %d datagrams (%d points, %d skipped) in %v",
					sent, points, skipped, time.Since(start))
				return nil
			}

			udpLayer, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
			if !ok || len(udpLayer.Payload) == 0 {
				continue
			}

			// Only replay well-formed batch datagrams; captures often
			// carry unrelated traffic on the same port.
			batch, err := wire.UnmarshalBatch(udpLayer.Payload)
			if err != nil {
				skipped++
				continue
			}

			if *pace && !lastStamp.IsZero() {
				gap := packet.Metadata().Timestamp.Sub(lastStamp)
				if gap > 0 {
					select {
					case <-ctx.Done():
						return ctx.Err()
					case <-time.After(gap):
					}
				}
			}
			lastStamp = packet.Metadata().Timestamp

			if _, err := conn.Write(udpLayer.Payload); err != nil {
				return fmt.Errorf("writing datagram: %w", err)
			}
			sent++
			points += len(batch.Points)
		}
	}
}
