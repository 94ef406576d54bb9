// Command gridedit serves a grid editing engine to a map host over
// WebSocket.
//
// It loads a grid context from a JSON file, serves the host protocol on
// /ws and Prometheus metrics on /metrics. With -dump-pick it renders one
// box pick over the whole context, writes the id target as PNG and exits.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"

	"github.com/gogpu/gridedit"
	"github.com/gogpu/gridedit/feature"
	"github.com/gogpu/gridedit/grid"
	"github.com/gogpu/gridedit/hostbridge"
	"github.com/gogpu/gridedit/picking"
)

type config struct {
	listen       string
	contextFile  string
	snapshotFile string
	featureURL   string
	useGPU       bool
	logLevel     string
	dumpPick     string
	width        int
	height       int
}

func main() {
	var cfg config
	flag.StringVar(&cfg.listen, "listen", ":8080", "address to serve the host bridge and metrics on")
	flag.StringVar(&cfg.contextFile, "context", "", "grid context JSON file")
	flag.StringVar(&cfg.snapshotFile, "snapshot", "", "saved grid JSON file to restore (optional)")
	flag.StringVar(&cfg.featureURL, "feature-url", "", "base URL of the topology service for feature picks")
	flag.BoolVar(&cfg.useGPU, "gpu", false, "mirror attributes and render picks on a Vulkan device")
	flag.StringVar(&cfg.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	flag.StringVar(&cfg.dumpPick, "dump-pick", "", "write the id target of a full box pick to this PNG file and exit")
	flag.IntVar(&cfg.width, "width", 800, "viewport width for -dump-pick")
	flag.IntVar(&cfg.height, "height", 600, "viewport height for -dump-pick")
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "invalid -log-level: %v\n", err)
		os.Exit(2)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	gridedit.SetLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("gridedit: exiting", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config, logger *slog.Logger) error {
	if cfg.contextFile == "" {
		return errors.New("-context is required")
	}
	var gctx grid.Context
	if err := readJSON(cfg.contextFile, &gctx); err != nil {
		return err
	}
	var snap *grid.Snapshot
	if cfg.snapshotFile != "" {
		snap = new(grid.Snapshot)
		if err := readJSON(cfg.snapshotFile, snap); err != nil {
			return err
		}
	}

	bridge := hostbridge.New(hostbridge.WithLogger(logger))
	opts := []gridedit.Option{
		gridedit.WithHost(bridge),
		gridedit.WithNotifier(bridge),
	}
	if cfg.useGPU {
		opts = append(opts, gridedit.WithGPU())
	}
	if cfg.featureURL != "" {
		opts = append(opts, gridedit.WithFeatureSource(feature.NewSource(cfg.featureURL, feature.WithLogger(logger))))
	}
	var (
		sw  *picking.SoftwareRenderer
		src = new(mirrorSource)
	)
	if cfg.dumpPick != "" {
		sw = picking.NewSoftwareRenderer(src)
		opts = append(opts, gridedit.WithRenderer(sw))
	}

	e, err := gridedit.NewEngine(opts...)
	if err != nil {
		return err
	}
	defer e.Close()
	src.e = e
	if err := e.Load(gctx, snap); err != nil {
		return err
	}
	bridge.Attach(e)

	if sw != nil {
		return dumpPick(e, sw, gctx, cfg)
	}
	return serve(ctx, cfg.listen, bridge, logger)
}

func serve(ctx context.Context, addr string, bridge *hostbridge.Bridge, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/ws", bridge)
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("gridedit: listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// mirrorSource reads vertices from the mirror of an engine created after
// the renderer.
type mirrorSource struct {
	e *gridedit.Engine
}

func (s *mirrorSource) Vertices(slot int) (high, low grid.Vertices) {
	return s.e.Mirror().Vertices(slot)
}

// dumpPick renders a box pick covering the whole context and saves the id
// target.
func dumpPick(e *gridedit.Engine, sw *picking.SoftwareRenderer, gctx grid.Context, cfg config) error {
	view, err := fitView(e, gctx, float64(cfg.width), float64(cfg.height))
	if err != nil {
		return err
	}
	ids, err := e.PickBox(view, picking.Point{}, picking.Point{X: view.Width, Y: view.Height}, false)
	if err != nil {
		return err
	}
	t := sw.LastTarget()
	if t == nil {
		return errors.New("no pick was rendered")
	}
	if err := t.SavePNG(cfg.dumpPick); err != nil {
		return err
	}
	gridedit.Logger().Info("gridedit: pick target saved", "file", cfg.dumpPick, "ids", len(ids))
	return nil
}

// fitView returns a view showing the bounding box of gctx centred in a
// width x height viewport with a 5% margin.
func fitView(e *gridedit.Engine, gctx grid.Context, width, height float64) (picking.View, error) {
	proj, err := grid.LookupProjector(gctx.SourceCRS, gctx.TargetCRS)
	if err != nil {
		return picking.View{}, err
	}
	bbox := gctx.BoundingBox
	x0, ySouth := grid.MercatorFromLonLat(proj.Forward(bbox.MinX, bbox.MinY))
	x1, yNorth := grid.MercatorFromLonLat(proj.Forward(bbox.MaxX, bbox.MaxY))

	high, low, err := e.Origin()
	if err != nil {
		return picking.View{}, err
	}
	eye := [2]float64{
		float64(high[0]) + float64(low[0]),
		float64(high[1]) + float64(low[1]),
	}

	// Keep square cells square: fit the longer side.
	w, h := x1-x0, ySouth-yNorth
	scale := 1.9 / max(w*height/width, h)
	m := mgl64.Scale3D(scale*height/width, -scale, 1).
		Mul4(mgl64.Translate3D(-((x0+x1)/2 - eye[0]), -((ySouth+yNorth)/2 - eye[1]), 0))
	return picking.View{Matrix: m, Eye: eye, Width: width, Height: height, PixelRatio: 1}, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
