// Command curvature-plot renders the curvature profile of a captured scan
// to a PNG, with the corner/surface threshold drawn for reference. Input is
// an ASCII file of one "x y z" triple per line in scan order.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"image/color"
	"log"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/yoshua-msc-thesis/loam-velodyne/internal/loam"
)

var (
	inFile    = flag.String("in", "", "input scan file (x y z per line, scan order)")
	outFile   = flag.String("out", "curvature.png", "output PNG path")
	threshold = flag.Float64("threshold", 0.1, "surface curvature threshold to draw")
)

func main() {
	flag.Parse()
	if *inFile == "" {
		log.Fatal("missing required -in flag")
	}

	cloud, err := readScan(*inFile)
	if err != nil {
		log.Fatalf("reading scan: %v", err)
	}

	cfg := loam.NewRegistrationConfig().WithCurvatureThreshold(*threshold)
	if len(cloud) < 2*cfg.CurvatureRegion+1 {
		log.Fatalf("scan of %d points is too small for a curvature window", len(cloud))
	}

	buffers := loam.NewScanBuffers(cfg)
	if err := buffers.PrepareScan(cloud); err != nil {
		log.Fatalf("preparing scan: %v", err)
	}
	region := loam.Region{Start: cfg.CurvatureRegion, End: len(cloud) - cfg.CurvatureRegion}
	if err := buffers.PrepareRegion(region); err != nil {
		log.Fatalf("preparing region: %v", err)
	}

	profile := make(plotter.XYs, region.Len())
	for i := 0; i < region.Len(); i++ {
		profile[i].X = float64(region.Start + i)
		profile[i].Y = buffers.Curvature(i)
	}

	p := plot.New()
	p.Title.Text = "Scan curvature profile"
	p.X.Label.Text = "scan index"
	p.Y.Label.Text = "curvature"

	line, err := plotter.NewLine(profile)
	if err != nil {
		log.Fatalf("building curvature line: %v", err)
	}
	p.Add(line)
	p.Legend.Add("curvature", line)

	thresholdLine, err := plotter.NewLine(plotter.XYs{
		{X: float64(region.Start), Y: *threshold},
		{X: float64(region.End - 1), Y: *threshold},
	})
	if err != nil {
		log.Fatalf("building threshold line: %v", err)
	}
	thresholdLine.Color = color.RGBA{R: 200, A: 255}
	thresholdLine.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	p.Add(thresholdLine)
	p.Legend.Add("threshold", thresholdLine)

	if err := p.Save(10*vg.Inch, 4*vg.Inch, *outFile); err != nil {
		log.Fatalf("saving plot: %v", err)
	}
	log.Printf("wrote %s (%d points)", *outFile, region.Len())
}

// readScan parses an x y z per-line ASCII scan file.
func readScan(path string) (loam.Cloud, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cloud loam.Cloud
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" || line[0] == '#' {
			continue
		}
		var p loam.Point
		if _, err := fmt.Sscanf(line, "%f %f %f", &p.X, &p.Y, &p.Z); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		cloud = append(cloud, p)
	}
	return cloud, scanner.Err()
}
