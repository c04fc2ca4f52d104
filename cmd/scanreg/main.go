// Command scanreg runs the scan registration front end: it ingests raw
// point batches over UDP, extracts corner and surface features and
// publishes the resulting clouds to a downstream odometry consumer.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/yoshua-msc-thesis/loam-velodyne/internal/config"
	"github.com/yoshua-msc-thesis/loam-velodyne/internal/loam"
	"github.com/yoshua-msc-thesis/loam-velodyne/internal/loam/monitor"
	"github.com/yoshua-msc-thesis/loam-velodyne/internal/loam/network"
	sqlitestore "github.com/yoshua-msc-thesis/loam-velodyne/internal/loam/storage/sqlite"
	"github.com/yoshua-msc-thesis/loam-velodyne/internal/loam/wire"
	"github.com/yoshua-msc-thesis/loam-velodyne/internal/monitoring"
)

var (
	udpAddr     = flag.String("udp-addr", ":7502", "UDP address to listen on for point batches")
	publishAddr = flag.String("publish-addr", "", "UDP address to publish feature clouds to (empty: log only)")
	monitorAddr = flag.String("monitor", ":8081", "HTTP listen address for debug charts (empty: disabled)")
	dbFile      = flag.String("db", "", "SQLite feature store path (empty: disabled)")
	tuningFile  = flag.String("config", "", "JSON tuning file overriding registration defaults")
	frameID     = flag.String("frame", "", "frame identifier for published clouds (overrides tuning)")
	rcvBuf      = flag.Int("rcvbuf", 4<<20, "UDP receive buffer size in bytes")
	logInterval = flag.Int("log-interval", 10, "ingest statistics logging interval in seconds")
	systemDelay = flag.Int("system-delay", 20, "number of startup batches to skip while the sensor settles")
)

// logPublisher is the fallback publisher used when no downstream address is
// configured; it keeps the pipeline observable during bring-up.
type logPublisher struct{}

func (logPublisher) Publish(f *loam.ScanFeatures) error {
	monitoring.Logf("scan %s: %d points, %d sharp, %d less-sharp, %d flat, %d less-flat (sweep %s)",
		f.Stamp.Format(time.RFC3339Nano), len(f.FullCloud), len(f.CornerSharp),
		len(f.CornerLessSharp), len(f.SurfaceFlat), len(f.SurfaceLessFlat), f.SweepID)
	return nil
}

func main() {
	flag.Parse()

	cfg := loam.NewRegistrationConfig()
	if *tuningFile != "" {
		tuning, err := config.LoadTuningConfig(*tuningFile)
		if err != nil {
			log.Fatalf("loading tuning config: %v", err)
		}
		if err := tuning.Apply(cfg); err != nil {
			log.Fatalf("applying tuning config: %v", err)
		}
	}
	if *frameID != "" {
		cfg.WithFrameID(*frameID)
	}

	var publisher loam.FeaturePublisher = logPublisher{}
	if *publishAddr != "" {
		udpPub, err := network.NewUDPPublisher(*publishAddr)
		if err != nil {
			log.Fatalf("creating publisher: %v", err)
		}
		defer udpPub.Close()
		publisher = udpPub
	}

	var sinks []loam.StatsSink

	var webserver *monitor.WebServer
	if *monitorAddr != "" {
		webserver = monitor.NewWebServer(0)
		sinks = append(sinks, webserver.Record)
	}

	if *dbFile != "" {
		store, err := sqlitestore.NewFeatureStore(*dbFile)
		if err != nil {
			log.Fatalf("opening feature store: %v", err)
		}
		defer store.Close()
		sinks = append(sinks, func(stats loam.ScanStats) {
			if err := store.RecordScan(stats); err != nil {
				monitoring.Logf("feature store: %v", err)
			}
		})
	}

	reg, err := loam.NewScanRegistration(cfg, publisher,
		loam.WithStatsSink(func(stats loam.ScanStats) {
			for _, sink := range sinks {
				sink(stats)
			}
		}),
	)
	if err != nil {
		log.Fatalf("creating scan registration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if webserver != nil {
		srv := &http.Server{Addr: *monitorAddr, Handler: webserver.Handler()}
		go func() {
			monitoring.Logf("monitor listening on %s", *monitorAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				monitoring.Logf("monitor server: %v", err)
			}
		}()
		defer srv.Close()
	}

	// The sensor needs a few rotations to settle after power-up; skip the
	// first batches rather than feed transient geometry to the extractor.
	remainingDelay := *systemDelay

	listener := network.NewBatchListener(network.BatchListenerConfig{
		Address:     *udpAddr,
		RcvBuf:      *rcvBuf,
		LogInterval: time.Duration(*logInterval) * time.Second,
		Handler: func(batch wire.PointBatch) {
			if remainingDelay > 0 {
				remainingDelay--
				return
			}
			if err := reg.ProcessScan(batch.Points, batch.Stamp); err != nil {
				monitoring.Logf("scan processing failed: %v", err)
			}
		},
	})

	if err := listener.Start(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("batch listener: %v", err)
	}
}
