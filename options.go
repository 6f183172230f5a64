package g3d

// DefaultMaxSamples is the default sample budget of a pipeline. At 72 bytes
// per sample it caps the sample buffer near 4.5 GiB.
const DefaultMaxSamples = 1 << 26

// DefaultMaxElements is the default budget for instanced vertices and
// instanced indices. At 64 bytes per transformed vertex and about 80 bytes
// per instanced index (index plus its share of a primitive) it caps the
// geometry buffers near 2.5 GiB.
const DefaultMaxElements = 1 << 24

// Option configures a Pipeline during creation.
//
// Example:
//
//	p, err := g3d.New(
//	    g3d.WithSupersample(4),
//	    g3d.WithInstances(9, g3d.GridRule(9, 1.5)),
//	)
type Option func(*options)

type options struct {
	supersample int
	workers     int
	policy      DepthPolicy
	filter      Filter
	light       Light
	instances   int
	rule        PlacementRule
	maxSamples  int
	maxElements int
	margin      int
	cpuOnly     bool
}

func defaultOptions() options {
	return options{
		supersample: 2,
		policy:      DepthStrict,
		filter:      BoxFilter{},
		light:       DefaultLight(),
		instances:   1,
		rule:        IdentityRule,
		maxSamples:  DefaultMaxSamples,
		maxElements: DefaultMaxElements,
		margin:      DefaultRasterMargin,
	}
}

// WithSupersample sets the number of samples per pixel side. The sample
// grid holds s² samples per output pixel. Default 2.
func WithSupersample(s int) Option {
	return func(o *options) {
		o.supersample = s
	}
}

// WithWorkers sets the number of CPU workers. Zero or negative uses
// GOMAXPROCS; 1 runs every stage on the calling goroutine.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithDepthPolicy selects how concurrent writers to a sample are resolved.
// Default DepthStrict.
func WithDepthPolicy(p DepthPolicy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithFilter sets the resolve filter. Default BoxFilter.
func WithFilter(f Filter) Option {
	return func(o *options) {
		if f != nil {
			o.filter = f
		}
	}
}

// WithLight sets the scene light. Default DefaultLight.
func WithLight(l Light) Option {
	return func(o *options) {
		o.light = l
	}
}

// WithInstances renders n copies of the scene, placed by rule every frame.
// A nil rule places every instance at the origin.
func WithInstances(n int, rule PlacementRule) Option {
	return func(o *options) {
		o.instances = n
		if rule == nil {
			rule = IdentityRule
		}
		o.rule = rule
	}
}

// WithMaxSamples caps the sample buffer size. Resizes beyond it fail with
// ErrAllocation. Zero or negative disables the cap.
func WithMaxSamples(n int) Option {
	return func(o *options) {
		o.maxSamples = n
	}
}

// WithMaxElements caps the instanced vertex count and the instanced index
// count of a scene. LoadScene beyond it fails with ErrAllocation. Zero or
// negative disables the cap.
func WithMaxElements(n int) Option {
	return func(o *options) {
		o.maxElements = n
	}
}

// WithRasterMargin sets the number of samples by which primitive bounding
// boxes are padded. Default DefaultRasterMargin.
func WithRasterMargin(m int) Option {
	return func(o *options) {
		if m >= 0 {
			o.margin = m
		}
	}
}

// WithCPUOnly disables the registered GPU accelerator for this pipeline.
func WithCPUOnly() Option {
	return func(o *options) {
		o.cpuOnly = true
	}
}
