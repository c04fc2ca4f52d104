// Package wire defines the binary datagram formats used to move point
// batches into the registration pipeline and feature clouds out of it.
// All fields are little-endian.
package wire

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/yoshua-msc-thesis/loam-velodyne/internal/loam"
)

// Datagram magics. Raw batches flow into the pipeline, feature messages out.
const (
	BatchMagic   uint32 = 0x4c424154 // "LBAT"
	FeatureMagic uint32 = 0x4c464541 // "LFEA"
)

// FeatureClass identifies one of the five published cloud types.
type FeatureClass uint8

const (
	ClassFullCloud FeatureClass = iota
	ClassCornerSharp
	ClassCornerLessSharp
	ClassSurfaceFlat
	ClassSurfaceLessFlat
)

// String returns the wire-stable name of the class.
func (c FeatureClass) String() string {
	switch c {
	case ClassFullCloud:
		return "full_cloud"
	case ClassCornerSharp:
		return "corner_sharp"
	case ClassCornerLessSharp:
		return "corner_less_sharp"
	case ClassSurfaceFlat:
		return "surface_flat"
	case ClassSurfaceLessFlat:
		return "surface_less_flat"
	default:
		return fmt.Sprintf("class_%d", uint8(c))
	}
}

// MaxBatchPoints is the largest point count a single datagram can carry
// within a 65507-byte UDP payload: 16 header bytes then 16 bytes per point.
const MaxBatchPoints = (65507 - batchHeaderSize) / pointSize

const (
	batchHeaderSize = 4 + 8 + 4 // magic, unix nanos, count
	pointSize       = 4 * 4     // x, y, z, reltime float32
)

// PointBatch is one raw scan batch: a timestamp and its ordered points.
type PointBatch struct {
	Stamp  time.Time
	Points loam.Cloud
}

// MarshalBatch encodes a PointBatch into a single datagram payload.
func MarshalBatch(b PointBatch) ([]byte, error) {
	if len(b.Points) > MaxBatchPoints {
		return nil, fmt.Errorf("batch of %d points exceeds datagram capacity %d", len(b.Points), MaxBatchPoints)
	}
	buf := make([]byte, batchHeaderSize+len(b.Points)*pointSize)
	binary.LittleEndian.PutUint32(buf[0:4], BatchMagic)
	binary.LittleEndian.PutUint64(buf[4:12], uint64(b.Stamp.UnixNano()))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(len(b.Points)))
	off := batchHeaderSize
	for _, p := range b.Points {
		putPoint(buf[off:], p)
		off += pointSize
	}
	return buf, nil
}

// UnmarshalBatch decodes a datagram payload into a PointBatch.
func UnmarshalBatch(data []byte) (PointBatch, error) {
	if len(data) < batchHeaderSize {
		return PointBatch{}, fmt.Errorf("batch datagram too short: %d bytes", len(data))
	}
	if magic := binary.LittleEndian.Uint32(data[0:4]); magic != BatchMagic {
		return PointBatch{}, fmt.Errorf("bad batch magic 0x%08x", magic)
	}
	count := int(binary.LittleEndian.Uint32(data[12:16]))
	if want := batchHeaderSize + count*pointSize; len(data) != want {
		return PointBatch{}, fmt.Errorf("batch length %d does not match %d points", len(data), count)
	}
	batch := PointBatch{
		Stamp:  time.Unix(0, int64(binary.LittleEndian.Uint64(data[4:12]))),
		Points: make(loam.Cloud, count),
	}
	off := batchHeaderSize
	for i := 0; i < count; i++ {
		batch.Points[i] = getPoint(data[off:])
		off += pointSize
	}
	return batch, nil
}

// featureHeaderSize: magic, class, frame id length, sweep id length, unix
// nanos, point count. Both identifiers are length-prefixed UTF-8.
const featureHeaderSize = 4 + 1 + 1 + 1 + 8 + 4

// MaxFeaturePoints returns the largest point count a feature datagram can
// carry for the given identifiers.
func MaxFeaturePoints(frameID, sweepID string) int {
	return (65507 - featureHeaderSize - len(frameID) - len(sweepID)) / pointSize
}

// FeatureMessage carries one feature class of one scan.
type FeatureMessage struct {
	Class   FeatureClass
	FrameID string
	SweepID string
	Stamp   time.Time
	Points  loam.Cloud
}

// MarshalFeature encodes a FeatureMessage into a single datagram payload.
func MarshalFeature(m FeatureMessage) ([]byte, error) {
	if len(m.FrameID) > 255 || len(m.SweepID) > 255 {
		return nil, fmt.Errorf("frame or sweep identifier exceeds 255 bytes")
	}
	maxPoints := (65507 - featureHeaderSize - len(m.FrameID) - len(m.SweepID)) / pointSize
	if len(m.Points) > maxPoints {
		return nil, fmt.Errorf("feature cloud of %d points exceeds datagram capacity %d", len(m.Points), maxPoints)
	}
	buf := make([]byte, featureHeaderSize+len(m.FrameID)+len(m.SweepID)+len(m.Points)*pointSize)
	binary.LittleEndian.PutUint32(buf[0:4], FeatureMagic)
	buf[4] = byte(m.Class)
	buf[5] = byte(len(m.FrameID))
	buf[6] = byte(len(m.SweepID))
	binary.LittleEndian.PutUint64(buf[7:15], uint64(m.Stamp.UnixNano()))
	binary.LittleEndian.PutUint32(buf[15:19], uint32(len(m.Points)))
	off := featureHeaderSize
	off += copy(buf[off:], m.FrameID)
	off += copy(buf[off:], m.SweepID)
	for _, p := range m.Points {
		putPoint(buf[off:], p)
		off += pointSize
	}
	return buf, nil
}

// UnmarshalFeature decodes a datagram payload into a FeatureMessage.
func UnmarshalFeature(data []byte) (FeatureMessage, error) {
	if len(data) < featureHeaderSize {
		return FeatureMessage{}, fmt.Errorf("feature datagram too short: %d bytes", len(data))
	}
	if magic := binary.LittleEndian.Uint32(data[0:4]); magic != FeatureMagic {
		return FeatureMessage{}, fmt.Errorf("bad feature magic 0x%08x", magic)
	}
	frameLen := int(data[5])
	sweepLen := int(data[6])
	count := int(binary.LittleEndian.Uint32(data[15:19]))
	want := featureHeaderSize + frameLen + sweepLen + count*pointSize
	if len(data) != want {
		return FeatureMessage{}, fmt.Errorf("feature length %d does not match header (want %d)", len(data), want)
	}
	off := featureHeaderSize
	msg := FeatureMessage{
		Class:   FeatureClass(data[4]),
		FrameID: string(data[off : off+frameLen]),
		SweepID: string(data[off+frameLen : off+frameLen+sweepLen]),
		Stamp:   time.Unix(0, int64(binary.LittleEndian.Uint64(data[7:15]))),
		Points:  make(loam.Cloud, count),
	}
	off += frameLen + sweepLen
	for i := 0; i < count; i++ {
		msg.Points[i] = getPoint(data[off:])
		off += pointSize
	}
	return msg, nil
}

func putPoint(buf []byte, p loam.Point) {
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(float32(p.X)))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(float32(p.Y)))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(float32(p.Z)))
	binary.LittleEndian.PutUint32(buf[12:16], math.Float32bits(float32(p.Reltime)))
}

func getPoint(buf []byte) loam.Point {
	return loam.Point{
		X:       float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[0:4]))),
		Y:       float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[4:8]))),
		Z:       float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[8:12]))),
		Reltime: float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[12:16]))),
	}
}
