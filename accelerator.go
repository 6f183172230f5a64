package g3d

import (
	"errors"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// FrameInput is everything an accelerator needs to render one frame.
// Slices are owned by the pipeline and must not be retained.
type FrameInput struct {
	Vertices   []Vertex
	Indices    []uint32
	Transforms []InstanceTransform
	Light      Light

	Width, Height int
	Supersample   int
	Policy        DepthPolicy
	Margin        int
	Filter        Filter
}

// GPUAccelerator is an optional GPU implementation of the frame stages.
//
// When registered via RegisterAccelerator, a Pipeline tries the accelerator
// first. If it returns ErrFallbackToCPU or any other error, the frame is
// rendered on the CPU instead.
//
// Users opt in via blank import:
//
//	import _ "github.com/gogpu/g3d/gpu" // enables GPU rendering
type GPUAccelerator interface {
	// Name returns the accelerator name (e.g., "wgpu-raster").
	Name() string

	// Init initializes GPU resources. Called once during registration.
	Init() error

	// Close releases GPU resources.
	Close()

	// CanAccelerate reports whether the accelerator supports the frame.
	// This is a fast check used to skip the GPU entirely.
	CanAccelerate(in *FrameInput) bool

	// RenderFrame runs clear through resolve and writes Width*Height
	// resolved colors, row-major, into out.
	RenderFrame(in *FrameInput, out []mgl32.Vec3) error
}

// DeviceProviderAware is an optional interface for accelerators that can
// share a GPU device with an external provider. The provider should expose
// HalDevice() any and HalQueue() any.
type DeviceProviderAware interface {
	SetDeviceProvider(provider any) error
}

var (
	accelMu sync.RWMutex
	accel   GPUAccelerator
)

// RegisterAccelerator registers the GPU accelerator. Subsequent calls
// replace the previous one, which is closed. If Init fails the accelerator
// is not registered and the error is returned.
func RegisterAccelerator(a GPUAccelerator) error {
	if a == nil {
		return errors.New("g3d: accelerator must not be nil")
	}
	if err := a.Init(); err != nil {
		return err
	}
	propagateLogger(a, Logger())

	accelMu.Lock()
	old := accel
	accel = a
	accelMu.Unlock()
	if old != nil {
		old.Close()
	}
	return nil
}

// Accelerator returns the registered GPU accelerator, or nil if none.
func Accelerator() GPUAccelerator {
	accelMu.RLock()
	a := accel
	accelMu.RUnlock()
	return a
}

// SetAcceleratorDeviceProvider passes a device provider to the registered
// accelerator. It is a no-op when no accelerator is registered or it does
// not support device sharing.
func SetAcceleratorDeviceProvider(provider any) error {
	a := Accelerator()
	if a == nil {
		return nil
	}
	if dpa, ok := a.(DeviceProviderAware); ok {
		return dpa.SetDeviceProvider(provider)
	}
	return nil
}
