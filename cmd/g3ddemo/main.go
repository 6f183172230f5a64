// Command g3ddemo renders a procedural mesh with the g3d pipeline and saves
// the frames as PNG files.
//
// Usage:
//
//	g3ddemo -width 800 -height 600 -frames 36 -out spin.png
//	g3ddemo -config scene.yaml -cpu
//
// With -frames greater than 1 the instances turn on a turntable and each
// frame is written as <out>_NNN.png.
package main

import (
	"context"
	"flag"
	"fmt"
	"image/png"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"

	"github.com/gogpu/g3d"
	_ "github.com/gogpu/g3d/gpu" // enable GPU rasterization when available
)

func main() {
	var (
		width   = flag.Int("width", 0, "image width (overrides config)")
		height  = flag.Int("height", 0, "image height (overrides config)")
		ss      = flag.Int("ss", 0, "supersample factor per axis (overrides config)")
		frames  = flag.Int("frames", 0, "number of turntable frames (overrides config)")
		output  = flag.String("out", "g3d.png", "output file")
		config  = flag.String("config", "", "YAML scene description")
		cpuOnly = flag.Bool("cpu", false, "disable the GPU accelerator")
		verbose = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	g3d.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := loadConfig(*config)
	if err != nil {
		log.Fatal(err)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "width":
			cfg.Width = *width
		case "height":
			cfg.Height = *height
		case "ss":
			cfg.Supersample = *ss
		case "frames":
			cfg.Frames = *frames
		}
	})

	if err := run(context.Background(), cfg, *output, *cpuOnly); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cfg Config, output string, cpuOnly bool) error {
	opts, err := cfg.options()
	if err != nil {
		return err
	}
	if cpuOnly {
		opts = append(opts, g3d.WithCPUOnly())
	}

	m, err := cfg.mesh()
	if err != nil {
		return err
	}
	scene, err := m.Scene()
	if err != nil {
		return fmt.Errorf("build scene: %w", err)
	}

	p, err := g3d.New(opts...)
	if err != nil {
		return err
	}
	defer p.Close()
	if err := p.LoadScene(scene); err != nil {
		return err
	}

	cam := cfg.camera()
	n := max(cfg.Frames, 1)
	pb := progressbar.Default(int64(n))
	defer pb.Close()

	for i := range n {
		fb, err := p.RenderFrame(ctx, cam)
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		if err := savePNG(frameName(output, i, n), fb); err != nil {
			return err
		}
		_ = pb.Add(1)
	}

	st := p.Stats()
	log.Printf("rendered %d frame(s) of %dx%d on %s (%d triangles, %d samples, last frame %v)",
		n, cam.Width, cam.Height, st.Backend, st.Primitives, st.Samples, st.Elapsed)
	return nil
}

// frameName returns output unchanged for a single frame and inserts a
// zero-padded frame index before the extension otherwise.
func frameName(output string, i, n int) string {
	if n <= 1 {
		return output
	}
	ext := filepath.Ext(output)
	return fmt.Sprintf("%s_%03d%s", strings.TrimSuffix(output, ext), i, ext)
}

func savePNG(path string, fb *g3d.Framebuffer) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, fb.Image()); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
