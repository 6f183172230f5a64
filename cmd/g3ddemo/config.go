package main

import (
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/g3d"
	"github.com/gogpu/g3d/mesh"
)

// Config is the demo scene description. Every field is optional; zero
// values keep the defaults from defaultConfig.
type Config struct {
	Width       int          `yaml:"width"`
	Height      int          `yaml:"height"`
	Supersample int          `yaml:"supersample"`
	Frames      int          `yaml:"frames"`
	Policy      string       `yaml:"policy"`
	Filter      string       `yaml:"filter"`
	Mesh        MeshConfig   `yaml:"mesh"`
	Camera      CameraConfig `yaml:"camera"`
	Light       LightConfig  `yaml:"light"`
	Instances   GridConfig   `yaml:"instances"`
	// Spin is the turntable speed in degrees per frame.
	Spin float32 `yaml:"spin"`
}

// MeshConfig selects a procedural mesh.
type MeshConfig struct {
	Kind         string       `yaml:"kind"` // cube, icosphere or plane
	Size         float32      `yaml:"size"`
	Subdivisions int          `yaml:"subdivisions"`
	Colors       [][3]float32 `yaml:"colors"`
}

// CameraConfig positions the viewer. FovY is in degrees.
type CameraConfig struct {
	Eye    *[3]float32 `yaml:"eye"`
	Target *[3]float32 `yaml:"target"`
	FovY   float32     `yaml:"fov"`
	Near   float32     `yaml:"near"`
	Far    float32     `yaml:"far"`
}

// LightConfig describes the single scene light.
type LightConfig struct {
	Kind      string      `yaml:"kind"` // point or directional
	Position  *[3]float32 `yaml:"position"`
	Direction *[3]float32 `yaml:"direction"`
}

// GridConfig lays instances out with g3d.GridRule.
type GridConfig struct {
	Count   int     `yaml:"count"`
	Spacing float32 `yaml:"spacing"`
}

var facePalette = []mgl32.Vec3{
	{0.9, 0.3, 0.2}, {0.2, 0.7, 0.3}, {0.2, 0.4, 0.9},
	{0.9, 0.8, 0.2}, {0.7, 0.3, 0.8}, {0.2, 0.8, 0.8},
}

func defaultConfig() Config {
	return Config{
		Width:       640,
		Height:      480,
		Supersample: 2,
		Frames:      1,
		Policy:      "strict",
		Filter:      "box",
		Mesh:        MeshConfig{Kind: "cube", Size: 1, Subdivisions: 2},
		Camera:      CameraConfig{FovY: 60, Near: 0.1, Far: 100},
		Light:       LightConfig{Kind: "point"},
		Instances:   GridConfig{Count: 1, Spacing: 1.5},
		Spin:        5,
	}
}

// loadConfig reads a YAML file over the defaults.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func vec3(v *[3]float32, def mgl32.Vec3) mgl32.Vec3 {
	if v == nil {
		return def
	}
	return mgl32.Vec3(*v)
}

// camera builds the g3d camera. The default eye backs off with the
// instance grid so every instance stays in view.
func (c Config) camera() g3d.Camera {
	cam := g3d.DefaultCamera(c.Width, c.Height)
	dist := 3 + float32(c.Instances.Count-1)*c.Instances.Spacing*0.5
	cam.Eye = vec3(c.Camera.Eye, mgl32.Vec3{0, dist * 0.4, dist})
	cam.Target = vec3(c.Camera.Target, mgl32.Vec3{})
	if c.Camera.FovY > 0 {
		cam.FovY = mgl32.DegToRad(c.Camera.FovY)
	}
	if c.Camera.Near > 0 {
		cam.Near = c.Camera.Near
	}
	if c.Camera.Far > 0 {
		cam.Far = c.Camera.Far
	}
	return cam
}

func (c Config) light() (g3d.Light, error) {
	switch c.Light.Kind {
	case "", "point":
		return g3d.Light{
			Kind:     g3d.PointLight,
			Position: vec3(c.Light.Position, mgl32.Vec3{2, 3, 5}),
		}, nil
	case "directional":
		return g3d.Light{
			Kind:      g3d.DirectionalLight,
			Direction: vec3(c.Light.Direction, mgl32.Vec3{-0.3, -0.5, -1}),
		}, nil
	default:
		return g3d.Light{}, fmt.Errorf("unknown light kind %q", c.Light.Kind)
	}
}

func (c Config) policy() (g3d.DepthPolicy, error) {
	switch c.Policy {
	case "", "strict":
		return g3d.DepthStrict, nil
	case "best-effort":
		return g3d.DepthBestEffort, nil
	default:
		return 0, fmt.Errorf("unknown depth policy %q", c.Policy)
	}
}

func (c Config) filter() (g3d.Filter, error) {
	switch c.Filter {
	case "", "box":
		return g3d.BoxFilter{}, nil
	case "tent":
		return g3d.TentFilter{}, nil
	default:
		return nil, fmt.Errorf("unknown filter %q", c.Filter)
	}
}

func (c Config) mesh() (*mesh.Mesh, error) {
	colors := make([]mgl32.Vec3, len(c.Mesh.Colors))
	for i, col := range c.Mesh.Colors {
		colors[i] = mgl32.Vec3(col)
	}
	if len(colors) == 0 {
		colors = facePalette
	}
	first := colors[0]
	size := c.Mesh.Size
	if size <= 0 {
		size = 1
	}

	switch c.Mesh.Kind {
	case "", "cube":
		return mesh.Cube(size, colors...), nil
	case "icosphere":
		return mesh.Icosphere(c.Mesh.Subdivisions, first), nil
	case "plane":
		return mesh.Plane(size, first), nil
	default:
		return nil, fmt.Errorf("unknown mesh kind %q", c.Mesh.Kind)
	}
}

// options converts the config into pipeline options.
func (c Config) options() ([]g3d.Option, error) {
	light, err := c.light()
	if err != nil {
		return nil, err
	}
	policy, err := c.policy()
	if err != nil {
		return nil, err
	}
	filter, err := c.filter()
	if err != nil {
		return nil, err
	}
	count := max(c.Instances.Count, 1)
	rule := g3d.SpinRule(g3d.GridRule(count, c.Instances.Spacing), mgl32.DegToRad(c.Spin))

	return []g3d.Option{
		g3d.WithSupersample(c.Supersample),
		g3d.WithLight(light),
		g3d.WithDepthPolicy(policy),
		g3d.WithFilter(filter),
		g3d.WithInstances(count, rule),
	}, nil
}
