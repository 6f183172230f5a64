//go:build !nogpu

package gpu

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/g3d"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// frameTimeout bounds the fence wait for one frame.
const frameTimeout = 5 * time.Second

// RasterAccelerator runs the g3d frame stages as wgpu/hal compute shaders.
// It implements the g3d.GPUAccelerator interface.
type RasterAccelerator struct {
	mu sync.Mutex

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue

	kernels [kernelCount]*kernel

	// cached holds the buffers of the last frame; they are reused while
	// the frame layout stays the same.
	cached *frame

	gpuReady       bool
	externalDevice bool // true when using shared device (don't destroy on Close)
}

var _ g3d.GPUAccelerator = (*RasterAccelerator)(nil)

func (a *RasterAccelerator) Name() string { return "wgpu-raster" }

// SetLogger receives the logger propagated by g3d.SetLogger.
func (a *RasterAccelerator) SetLogger(l *slog.Logger) { setLogger(l) }

// Init opens a GPU device. A missing adapter is not an error: the
// accelerator stays registered and every frame falls back to the CPU.
func (a *RasterAccelerator) Init() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.initGPU(); err != nil {
		slogger().Warn("gpu-raster: GPU init failed, using CPU fallback", "err", err)
	}
	return nil
}

// Ready reports whether a device and pipelines are available.
func (a *RasterAccelerator) Ready() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gpuReady
}

func (a *RasterAccelerator) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dropFrame()
	a.destroyKernels()
	if !a.externalDevice {
		if a.device != nil {
			a.device.Destroy()
		}
		if a.instance != nil {
			a.instance.Destroy()
		}
	}
	a.device = nil
	a.instance = nil
	a.queue = nil
	a.gpuReady = false
	a.externalDevice = false
}

// SetDeviceProvider switches the accelerator to a shared GPU device from
// an external provider (e.g., gogpu). The provider must implement
// HalDevice() any and HalQueue() any returning hal.Device and hal.Queue.
func (a *RasterAccelerator) SetDeviceProvider(provider any) error {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return fmt.Errorf("gpu-raster: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return fmt.Errorf("gpu-raster: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return fmt.Errorf("gpu-raster: provider HalQueue is not hal.Queue")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.dropFrame()
	a.destroyKernels()
	if !a.externalDevice && a.device != nil {
		a.device.Destroy()
	}
	if a.instance != nil {
		a.instance.Destroy()
		a.instance = nil
	}

	a.device = device
	a.queue = queue
	a.externalDevice = true

	if err := a.createKernels(); err != nil {
		a.gpuReady = false
		return fmt.Errorf("gpu-raster: create pipelines with shared device: %w", err)
	}
	a.gpuReady = true
	slogger().Info("gpu-raster: switched to shared GPU device")
	return nil
}

// CanAccelerate reports whether the frame fits the device's buffer limits.
func (a *RasterAccelerator) CanAccelerate(in *g3d.FrameInput) bool {
	if in == nil {
		return false
	}
	a.mu.Lock()
	ready := a.gpuReady
	a.mu.Unlock()
	if !ready {
		return false
	}
	_, ok := newFrameLayout(in)
	return ok
}

// RenderFrame runs one frame on the GPU and reads back the resolved colors.
func (a *RasterAccelerator) RenderFrame(in *g3d.FrameInput, out []mgl32.Vec3) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.gpuReady {
		return g3d.ErrFallbackToCPU
	}
	layout, ok := newFrameLayout(in)
	if !ok {
		return g3d.ErrFallbackToCPU
	}
	if len(out) < int(layout.pixels) {
		return fmt.Errorf("gpu-raster: output holds %d colors, frame has %d", len(out), layout.pixels)
	}

	f, err := a.frameFor(layout)
	if err != nil {
		return err
	}
	f.write(in)
	strict := in.Policy != g3d.DepthBestEffort
	if err := f.encodeAndWait(&a.kernels, strict); err != nil {
		a.dropFrame()
		return err
	}
	return f.readback(out)
}

// frameFor returns frame resources for layout, reusing the cached frame
// when its layout matches.
func (a *RasterAccelerator) frameFor(layout frameLayout) (*frame, error) {
	if a.cached != nil && a.cached.layout == layout {
		return a.cached, nil
	}
	a.dropFrame()

	f := &frame{device: a.device, queue: a.queue, layout: layout}
	if err := f.allocate(); err != nil {
		f.release()
		return nil, fmt.Errorf("%w: %w", g3d.ErrAllocation, err)
	}
	if err := f.bind(&a.kernels); err != nil {
		f.release()
		return nil, err
	}
	a.cached = f
	return f, nil
}

func (a *RasterAccelerator) dropFrame() {
	if a.cached != nil {
		a.cached.release()
		a.cached = nil
	}
}

// frame holds the per-frame GPU resources.
type frame struct {
	device hal.Device
	queue  hal.Queue
	layout frameLayout

	params, inVerts, instances, inIdx binding
	outVerts, outIdx, prims           binding
	depth, winner, samples, weights   binding
	colors, staging                   binding

	buffers    []hal.Buffer
	bindGroups [kernelCount]hal.BindGroup
}

// binding is a buffer and the size it was created with.
type binding struct {
	buf  hal.Buffer
	size uint64
}

// minBufferSize avoids zero-sized bindings.
const minBufferSize = 16

func (f *frame) create(label string, size uint64, usage gputypes.BufferUsage) (binding, error) {
	size = max(size, minBufferSize)
	buf, err := f.device.CreateBuffer(&hal.BufferDescriptor{Label: label, Size: size, Usage: usage})
	if err != nil {
		return binding{}, fmt.Errorf("create %s buffer (%d bytes): %w", label, size, err)
	}
	f.buffers = append(f.buffers, buf)
	return binding{buf: buf, size: size}, nil
}

// allocate creates every buffer of the frame.
func (f *frame) allocate() error {
	l := f.layout
	storage := gputypes.BufferUsageStorage
	upload := storage | gputypes.BufferUsageCopyDst

	buffers := []struct {
		dst   *binding
		label string
		size  uint64
		usage gputypes.BufferUsage
	}{
		{&f.params, "g3d_params", paramsSize, gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst},
		{&f.inVerts, "g3d_in_vertices", uint64(l.vertexCount) * inVertexSize, upload},
		{&f.instances, "g3d_instances", uint64(l.instanceCount) * instanceSize, upload},
		{&f.inIdx, "g3d_in_indices", uint64(l.indexCount) * 4, upload},
		{&f.weights, "g3d_filter_weights", uint64(l.ss) * uint64(l.ss) * 4, upload},
		{&f.outVerts, "g3d_out_vertices", uint64(l.vertexCount) * uint64(l.instanceCount) * outVertexSize, storage},
		{&f.outIdx, "g3d_out_indices", uint64(l.indexCount) * uint64(l.instanceCount) * 4, storage},
		{&f.prims, "g3d_prims", uint64(l.primCount) * primSize, storage},
		{&f.depth, "g3d_depth", uint64(l.samples) * 4, storage},
		{&f.winner, "g3d_winner", uint64(l.samples) * 4, storage},
		{&f.samples, "g3d_samples", uint64(l.samples) * sampleSize, storage},
		{&f.colors, "g3d_colors", uint64(l.pixels) * colorSize, storage | gputypes.BufferUsageCopySrc},
		{&f.staging, "g3d_staging", uint64(l.pixels) * colorSize, gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst},
	}
	for _, s := range buffers {
		b, err := f.create(s.label, s.size, s.usage)
		if err != nil {
			return err
		}
		*s.dst = b
	}

	slogger().Debug("gpu-raster: frame buffers created",
		"vertices", l.vertexCount*l.instanceCount,
		"primitives", l.primCount,
		"samples", l.samples)
	return nil
}

// write uploads the per-frame inputs. Output buffers are reset by the
// clear kernel.
func (f *frame) write(in *g3d.FrameInput) {
	weights := filterWeights(in.Filter, in.Supersample)
	for _, u := range []struct {
		dst  binding
		data []byte
	}{
		{f.params, packParams(in, f.layout)},
		{f.inVerts, packVertices(in.Vertices)},
		{f.instances, packInstances(in.Transforms)},
		{f.inIdx, packU32s(in.Indices)},
		{f.weights, packF32s(weights)},
	} {
		f.queue.WriteBuffer(u.dst.buf, 0, u.data)
	}
}

// kernelBuffers lists each kernel's buffers in binding order after Params.
func (f *frame) kernelBuffers(id kernelID) []binding {
	switch id {
	case kernelClear:
		return []binding{f.depth, f.winner, f.samples}
	case kernelVertex:
		return []binding{f.inVerts, f.instances, f.inIdx, f.outVerts, f.outIdx}
	case kernelAssemble:
		return []binding{f.outVerts, f.outIdx, f.prims}
	case kernelRasterDepth:
		return []binding{f.prims, f.depth}
	case kernelRasterWinner:
		return []binding{f.prims, f.depth, f.winner}
	case kernelRasterWrite:
		return []binding{f.prims, f.depth, f.winner, f.samples}
	case kernelShade:
		return []binding{f.samples}
	case kernelResolve:
		return []binding{f.samples, f.weights, f.colors}
	default:
		return nil
	}
}

func (f *frame) bind(kernels *[kernelCount]*kernel) error {
	for id := range kernelCount {
		k := kernels[id]
		bufs := append([]binding{f.params}, f.kernelBuffers(id)...)
		entries := make([]gputypes.BindGroupEntry, len(bufs))
		for i, b := range bufs {
			entries[i] = gputypes.BindGroupEntry{
				Binding:  uint32(i),
				Resource: gputypes.BufferBinding{Buffer: b.buf.NativeHandle(), Offset: 0, Size: b.size},
			}
		}
		bg, err := f.device.CreateBindGroup(&hal.BindGroupDescriptor{
			Label: k.desc.name + "_bind", Layout: k.bindLayout, Entries: entries,
		})
		if err != nil {
			return fmt.Errorf("create %s bind group: %w", k.desc.name, err)
		}
		f.bindGroups[id] = bg
	}
	return nil
}

// dispatchCount returns the number of invocations a kernel needs.
func (l frameLayout) dispatchCount(id kernelID) uint32 {
	switch id {
	case kernelClear, kernelShade:
		return l.samples
	case kernelVertex:
		return max(l.vertexCount, l.indexCount)
	case kernelAssemble, kernelRasterDepth, kernelRasterWinner, kernelRasterWrite:
		return l.primCount
	case kernelResolve:
		return l.pixels
	default:
		return 0
	}
}

// framePasses returns the kernels of one frame in order.
func framePasses(strict bool) []kernelID {
	if strict {
		return []kernelID{kernelClear, kernelVertex, kernelAssemble,
			kernelRasterDepth, kernelRasterWinner, kernelRasterWrite, kernelShade, kernelResolve}
	}
	return []kernelID{kernelClear, kernelVertex, kernelAssemble, kernelRasterWrite, kernelShade, kernelResolve}
}

func (f *frame) encodeAndWait(kernels *[kernelCount]*kernel, strict bool) error {
	encoder, err := f.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "g3d_frame_encoder"})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("g3d_frame"); err != nil {
		encoder.DiscardEncoding()
		return fmt.Errorf("begin encoding: %w", err)
	}

	// One compute pass per kernel; pass boundaries order storage writes.
	for _, id := range framePasses(strict) {
		x, y := workgroups(f.layout.dispatchCount(id))
		if x == 0 {
			continue
		}
		pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: kernels[id].desc.name})
		pass.SetPipeline(kernels[id].pipeline)
		pass.SetBindGroup(0, f.bindGroups[id], nil)
		pass.Dispatch(x, y, 1)
		pass.End()
	}

	encoder.CopyBufferToBuffer(f.colors.buf, f.staging.buf, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: uint64(f.layout.pixels) * colorSize},
	})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer f.device.FreeCommandBuffer(cmdBuf)

	fence, err := f.device.CreateFence()
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	defer f.device.DestroyFence(fence)
	if err := f.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	fenceOK, err := f.device.Wait(fence, 1, frameTimeout)
	if err != nil {
		return fmt.Errorf("wait for GPU: %w", err)
	}
	if !fenceOK {
		return errors.New("wait for GPU: timed out")
	}
	return nil
}

func (f *frame) readback(out []mgl32.Vec3) error {
	data := make([]byte, uint64(f.layout.pixels)*colorSize)
	if err := f.queue.ReadBuffer(f.staging.buf, 0, data); err != nil {
		return fmt.Errorf("readback: %w", err)
	}
	unpackColors(data, out)
	return nil
}

func (f *frame) release() {
	for _, bg := range f.bindGroups {
		if bg != nil {
			f.device.DestroyBindGroup(bg)
		}
	}
	for _, b := range f.buffers {
		f.device.DestroyBuffer(b)
	}
	f.buffers = nil
}

// filterWeights returns the filter's weights, or box weights when the
// filter is nil or malformed.
func filterWeights(filter g3d.Filter, ss int) []float32 {
	if filter != nil {
		if w := filter.Weights(ss); len(w) == ss*ss {
			return w
		}
	}
	return g3d.BoxFilter{}.Weights(ss)
}

func (a *RasterAccelerator) initGPU() error {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return fmt.Errorf("vulkan backend not available")
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return fmt.Errorf("create instance: %w", err)
	}
	a.instance = instance
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		return fmt.Errorf("no GPU adapters found")
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		return fmt.Errorf("open device: %w", err)
	}
	a.device = openDev.Device
	a.queue = openDev.Queue
	if err := a.createKernels(); err != nil {
		a.device.Destroy()
		a.device = nil
		a.queue = nil
		return fmt.Errorf("create pipelines: %w", err)
	}
	a.gpuReady = true
	slogger().Info("gpu-raster: GPU accelerator initialized", "adapter", selected.Info.Name)
	return nil
}

func (a *RasterAccelerator) createKernels() error {
	descs := kernelDescs()
	for id := range kernelCount {
		k, err := createKernel(a.device, descs[id])
		if err != nil {
			a.destroyKernels()
			return err
		}
		a.kernels[id] = k
	}
	return nil
}

func (a *RasterAccelerator) destroyKernels() {
	for id := range a.kernels {
		a.kernels[id].destroy(a.device)
		a.kernels[id] = nil
	}
}
