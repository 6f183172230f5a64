//go:build !nogpu

package gpu

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

//go:embed shaders/common.wgsl
var commonWGSL string

//go:embed shaders/raster_common.wgsl
var rasterCommonWGSL string

//go:embed shaders/clear.wgsl
var clearWGSL string

//go:embed shaders/vertex.wgsl
var vertexWGSL string

//go:embed shaders/assemble.wgsl
var assembleWGSL string

//go:embed shaders/raster_depth.wgsl
var rasterDepthWGSL string

//go:embed shaders/raster_winner.wgsl
var rasterWinnerWGSL string

//go:embed shaders/raster_write.wgsl
var rasterWriteWGSL string

//go:embed shaders/shade.wgsl
var shadeWGSL string

//go:embed shaders/resolve.wgsl
var resolveWGSL string

// workgroupSize matches @workgroup_size in every kernel.
const workgroupSize = 64

// maxWorkgroupsPerDim is the WebGPU default limit on dispatch size per
// dimension.
const maxWorkgroupsPerDim = 65535

// kernelID names a compute kernel in frame order.
type kernelID int

const (
	kernelClear kernelID = iota
	kernelVertex
	kernelAssemble
	kernelRasterDepth
	kernelRasterWinner
	kernelRasterWrite
	kernelShade
	kernelResolve
	kernelCount
)

const (
	bindUniform   = gputypes.BufferBindingTypeUniform
	bindRead      = gputypes.BufferBindingTypeReadOnlyStorage
	bindReadWrite = gputypes.BufferBindingTypeStorage
)

// kernelDesc describes a kernel's source and its bind group layout.
// Binding 0 is always the frame Params uniform.
type kernelDesc struct {
	name     string
	source   string
	bindings []gputypes.BufferBindingType
}

func kernelDescs() [kernelCount]kernelDesc {
	raster := func(src string) string { return commonWGSL + rasterCommonWGSL + src }
	return [kernelCount]kernelDesc{
		kernelClear: {"g3d_clear", commonWGSL + clearWGSL,
			[]gputypes.BufferBindingType{bindUniform, bindReadWrite, bindReadWrite, bindReadWrite}},
		kernelVertex: {"g3d_vertex", commonWGSL + vertexWGSL,
			[]gputypes.BufferBindingType{bindUniform, bindRead, bindRead, bindRead, bindReadWrite, bindReadWrite}},
		kernelAssemble: {"g3d_assemble", commonWGSL + assembleWGSL,
			[]gputypes.BufferBindingType{bindUniform, bindRead, bindRead, bindReadWrite}},
		kernelRasterDepth: {"g3d_raster_depth", raster(rasterDepthWGSL),
			[]gputypes.BufferBindingType{bindUniform, bindRead, bindReadWrite}},
		kernelRasterWinner: {"g3d_raster_winner", raster(rasterWinnerWGSL),
			[]gputypes.BufferBindingType{bindUniform, bindRead, bindReadWrite, bindReadWrite}},
		kernelRasterWrite: {"g3d_raster_write", raster(rasterWriteWGSL),
			[]gputypes.BufferBindingType{bindUniform, bindRead, bindReadWrite, bindReadWrite, bindReadWrite}},
		kernelShade: {"g3d_shade", commonWGSL + shadeWGSL,
			[]gputypes.BufferBindingType{bindUniform, bindReadWrite}},
		kernelResolve: {"g3d_resolve", commonWGSL + resolveWGSL,
			[]gputypes.BufferBindingType{bindUniform, bindRead, bindRead, bindReadWrite}},
	}
}

// kernel is a compiled compute pipeline and its layouts.
type kernel struct {
	desc       kernelDesc
	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.ComputePipeline
}

func createKernel(device hal.Device, desc kernelDesc) (*kernel, error) {
	k := &kernel{desc: desc}

	shader, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  desc.name,
		Source: hal.ShaderSource{WGSL: desc.source},
	})
	if err != nil {
		return nil, fmt.Errorf("compile %s shader: %w", desc.name, err)
	}
	k.shader = shader

	entries := make([]gputypes.BindGroupLayoutEntry, len(desc.bindings))
	for i, t := range desc.bindings {
		entries[i] = gputypes.BindGroupLayoutEntry{
			Binding:    uint32(i),
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: t},
		}
	}
	bindLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   desc.name + "_bind_layout",
		Entries: entries,
	})
	if err != nil {
		k.destroy(device)
		return nil, fmt.Errorf("create %s bind group layout: %w", desc.name, err)
	}
	k.bindLayout = bindLayout

	pipeLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: desc.name + "_pipe_layout", BindGroupLayouts: []hal.BindGroupLayout{k.bindLayout},
	})
	if err != nil {
		k.destroy(device)
		return nil, fmt.Errorf("create %s pipeline layout: %w", desc.name, err)
	}
	k.pipeLayout = pipeLayout

	pipeline, err := device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label: desc.name + "_pipeline", Layout: k.pipeLayout,
		Compute: hal.ComputeState{Module: k.shader, EntryPoint: "main"},
	})
	if err != nil {
		k.destroy(device)
		return nil, fmt.Errorf("create %s compute pipeline: %w", desc.name, err)
	}
	k.pipeline = pipeline
	return k, nil
}

func (k *kernel) destroy(device hal.Device) {
	if k == nil || device == nil {
		return
	}
	if k.pipeline != nil {
		device.DestroyComputePipeline(k.pipeline)
	}
	if k.pipeLayout != nil {
		device.DestroyPipelineLayout(k.pipeLayout)
	}
	if k.bindLayout != nil {
		device.DestroyBindGroupLayout(k.bindLayout)
	}
	if k.shader != nil {
		device.DestroyShaderModule(k.shader)
	}
}

// workgroups returns the dispatch size covering n invocations. Counts past
// the per-dimension limit spill into y; kernels recover the linear index
// from num_workgroups.
func workgroups(n uint32) (x, y uint32) {
	if n == 0 {
		return 0, 0
	}
	groups := (n + workgroupSize - 1) / workgroupSize
	x = min(groups, maxWorkgroupsPerDim)
	y = (groups + x - 1) / x
	return x, y
}
