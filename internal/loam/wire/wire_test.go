package wire

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/yoshua-msc-thesis/loam-velodyne/internal/loam"
)

func TestBatchRoundtrip(t *testing.T) {
	in := PointBatch{
		Stamp: time.Unix(1700000000, 123456789),
		Points: loam.Cloud{
			{X: 1.5, Y: -2.25, Z: 0.125, Reltime: 0.5},
			{X: 0, Y: 0, Z: 4, Reltime: 1},
		},
	}
	data, err := MarshalBatch(in)
	if err != nil {
		t.Fatalf("MarshalBatch: %v", err)
	}
	out, err := UnmarshalBatch(data)
	if err != nil {
		t.Fatalf("UnmarshalBatch: %v", err)
	}
	if !out.Stamp.Equal(in.Stamp) {
		t.Errorf("stamp = %v, want %v", out.Stamp, in.Stamp)
	}
	// Every value above, relative times included, is exact in float32, so
	// the roundtrip is lossless.
	if diff := cmp.Diff(in.Points, out.Points); diff != "" {
		t.Errorf("points (-want +got):\n%s", diff)
	}
}

func TestBatchRejectsOversize(t *testing.T) {
	b := PointBatch{Points: make(loam.Cloud, MaxBatchPoints+1)}
	if _, err := MarshalBatch(b); err == nil {
		t.Error("MarshalBatch accepted a batch over datagram capacity")
	}
}

func TestUnmarshalBatchRejectsCorruptPayloads(t *testing.T) {
	good, err := MarshalBatch(PointBatch{
		Stamp:  time.Unix(1700000000, 0),
		Points: loam.Cloud{{X: 1, Y: 2, Z: 3}},
	})
	if err != nil {
		t.Fatalf("MarshalBatch: %v", err)
	}

	if _, err := UnmarshalBatch(good[:8]); err == nil {
		t.Error("accepted a truncated header")
	}
	if _, err := UnmarshalBatch(good[:len(good)-4]); err == nil {
		t.Error("accepted a payload shorter than its point count")
	}
	bad := append([]byte(nil), good...)
	bad[0] ^= 0xff
	if _, err := UnmarshalBatch(bad); err == nil {
		t.Error("accepted a bad magic")
	}
}

func TestFeatureRoundtrip(t *testing.T) {
	in := FeatureMessage{
		Class:   ClassCornerSharp,
		FrameID: "laser",
		SweepID: "0e3f9b5c-4a31-4a0a-9d3e-1fd1d6f34c21",
		Stamp:   time.Unix(1700000000, 42),
		Points:  loam.Cloud{{X: -3.5, Y: 7, Z: 0.5, Reltime: 0.25}},
	}
	data, err := MarshalFeature(in)
	if err != nil {
		t.Fatalf("MarshalFeature: %v", err)
	}
	out, err := UnmarshalFeature(data)
	if err != nil {
		t.Fatalf("UnmarshalFeature: %v", err)
	}
	if out.Class != in.Class || out.FrameID != in.FrameID || out.SweepID != in.SweepID {
		t.Errorf("header fields = %v/%q/%q, want %v/%q/%q",
			out.Class, out.FrameID, out.SweepID, in.Class, in.FrameID, in.SweepID)
	}
	if !out.Stamp.Equal(in.Stamp) {
		t.Errorf("stamp = %v, want %v", out.Stamp, in.Stamp)
	}
	if diff := cmp.Diff(in.Points, out.Points); diff != "" {
		t.Errorf("points (-want +got):\n%s", diff)
	}
}

func TestFeatureEmptyCloudAllowed(t *testing.T) {
	data, err := MarshalFeature(FeatureMessage{Class: ClassSurfaceFlat, FrameID: "laser", SweepID: "s"})
	if err != nil {
		t.Fatalf("MarshalFeature: %v", err)
	}
	out, err := UnmarshalFeature(data)
	if err != nil {
		t.Fatalf("UnmarshalFeature: %v", err)
	}
	if len(out.Points) != 0 {
		t.Errorf("got %d points, want 0", len(out.Points))
	}
}

func TestFeatureIdentifierLimit(t *testing.T) {
	long := make([]byte, 256)
	for i := range long {
		long[i] = 'a'
	}
	_, err := MarshalFeature(FeatureMessage{FrameID: string(long), SweepID: "s"})
	if err == nil {
		t.Error("MarshalFeature accepted a frame identifier over 255 bytes")
	}
}

func TestMaxFeaturePointsAccountsForIdentifiers(t *testing.T) {
	short := MaxFeaturePoints("a", "b")
	long := MaxFeaturePoints("frame-with-a-long-name", "0e3f9b5c-4a31-4a0a-9d3e-1fd1d6f34c21")
	if long >= short {
		t.Errorf("capacity %d with long identifiers not below %d with short ones", long, short)
	}
	m := FeatureMessage{
		FrameID: "laser",
		SweepID: "sweep",
		Points:  make(loam.Cloud, MaxFeaturePoints("laser", "sweep")),
	}
	if _, err := MarshalFeature(m); err != nil {
		t.Errorf("MarshalFeature rejected a cloud at exact capacity: %v", err)
	}
}

func TestFeatureClassNames(t *testing.T) {
	want := map[FeatureClass]string{
		ClassFullCloud:       "full_cloud",
		ClassCornerSharp:     "corner_sharp",
		ClassCornerLessSharp: "corner_less_sharp",
		ClassSurfaceFlat:     "surface_flat",
		ClassSurfaceLessFlat: "surface_less_flat",
	}
	for class, name := range want {
		if got := class.String(); got != name {
			t.Errorf("%d.String() = %q, want %q", class, got, name)
		}
	}
}
