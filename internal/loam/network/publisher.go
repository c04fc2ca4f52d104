package network

import (
	"fmt"
	"net"

	"github.com/yoshua-msc-thesis/loam-velodyne/internal/loam"
	"github.com/yoshua-msc-thesis/loam-velodyne/internal/loam/wire"
)

// UDPPublisher implements loam.FeaturePublisher over UDP: each scan becomes
// five feature datagrams, one per cloud class. Clouds larger than a single
// datagram are split into consecutive datagrams of the same class.
type UDPPublisher struct {
	conn *net.UDPConn
}

// NewUDPPublisher dials the downstream consumer address.
func NewUDPPublisher(address string) (*UDPPublisher, error) {
	addr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve publish address: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial publish address: %w", err)
	}
	return &UDPPublisher{conn: conn}, nil
}

// Publish sends the five feature clouds of one scan.
func (p *UDPPublisher) Publish(features *loam.ScanFeatures) error {
	clouds := []struct {
		class  wire.FeatureClass
		points loam.Cloud
	}{
		{wire.ClassFullCloud, features.FullCloud},
		{wire.ClassCornerSharp, features.CornerSharp},
		{wire.ClassCornerLessSharp, features.CornerLessSharp},
		{wire.ClassSurfaceFlat, features.SurfaceFlat},
		{wire.ClassSurfaceLessFlat, features.SurfaceLessFlat},
	}
	for _, c := range clouds {
		if err := p.sendCloud(c.class, c.points, features); err != nil {
			return fmt.Errorf("publishing %s: %w", c.class, err)
		}
	}
	return nil
}

// sendCloud transmits one cloud, chunking it across datagrams when needed.
// An empty cloud still produces one empty datagram so consumers see all
// five classes every scan.
func (p *UDPPublisher) sendCloud(class wire.FeatureClass, points loam.Cloud, features *loam.ScanFeatures) error {
	chunk := wire.MaxFeaturePoints(features.FrameID, features.SweepID)
	for first := true; first || len(points) > 0; first = false {
		n := len(points)
		if n > chunk {
			n = chunk
		}
		payload, err := wire.MarshalFeature(wire.FeatureMessage{
			Class:   class,
			FrameID: features.FrameID,
			SweepID: features.SweepID,
			Stamp:   features.Stamp,
			Points:  points[:n],
		})
		if err != nil {
			return err
		}
		if _, err := p.conn.Write(payload); err != nil {
			return err
		}
		points = points[n:]
	}
	return nil
}

// Close releases the socket.
func (p *UDPPublisher) Close() error {
	return p.conn.Close()
}
