//go:build !nogpu

package gpu

import (
	"strings"
	"testing"

	"github.com/gogpu/naga"
)

// TestKernelShaderCompilation compiles every kernel's WGSL to SPIR-V.
func TestKernelShaderCompilation(t *testing.T) {
	descs := kernelDescs()
	for id := range kernelCount {
		desc := descs[id]
		t.Run(desc.name, func(t *testing.T) {
			if desc.source == "" {
				t.Fatal("shader source is empty")
			}

			spirvBytes, err := naga.Compile(desc.source)
			if err != nil {
				errStr := err.Error()
				if strings.Contains(errStr, "not yet implemented") || strings.Contains(errStr, "not supported") {
					t.Skipf("Skipping: naga feature not yet implemented: %v", err)
				}
				if strings.Contains(errStr, "lowering error") || strings.Contains(errStr, "atomic") {
					t.Skipf("Skipping: naga atomic/lowering limitation: %v", err)
				}
				t.Fatalf("failed to compile %s: %v", desc.name, err)
			}

			// Verify SPIR-V magic number (0x07230203)
			if len(spirvBytes) < 4 {
				t.Fatal("SPIR-V too short")
			}
			magic := uint32(spirvBytes[0]) |
				uint32(spirvBytes[1])<<8 |
				uint32(spirvBytes[2])<<16 |
				uint32(spirvBytes[3])<<24
			if magic != 0x07230203 {
				t.Errorf("invalid SPIR-V magic: 0x%08X, want 0x07230203", magic)
			}
		})
	}
}

func TestKernelBindingsMatchShaders(t *testing.T) {
	descs := kernelDescs()
	for id := range kernelCount {
		desc := descs[id]
		if desc.bindings[0] != bindUniform {
			t.Errorf("%s: binding 0 must be the params uniform", desc.name)
		}
		// Every declared binding must appear in the source, and no more.
		for b := range desc.bindings {
			decl := "@binding(" + itoa(b) + ")"
			if !strings.Contains(desc.source, decl) {
				t.Errorf("%s: layout has binding %d but shader does not declare it", desc.name, b)
			}
		}
		extra := "@binding(" + itoa(len(desc.bindings)) + ")"
		if strings.Contains(desc.source, extra) {
			t.Errorf("%s: shader declares %s beyond the layout", desc.name, extra)
		}
	}
}

func itoa(n int) string {
	if n < 10 {
		return string(rune('0' + n))
	}
	return itoa(n/10) + string(rune('0'+n%10))
}

func TestWorkgroups(t *testing.T) {
	tests := []struct {
		n     uint32
		wantX uint32
		wantY uint32
	}{
		{0, 0, 0},
		{1, 1, 1},
		{64, 1, 1},
		{65, 2, 1},
		{maxWorkgroupsPerDim * workgroupSize, maxWorkgroupsPerDim, 1},
		{maxWorkgroupsPerDim*workgroupSize + 1, maxWorkgroupsPerDim, 2},
	}
	for _, tt := range tests {
		x, y := workgroups(tt.n)
		if x != tt.wantX || y != tt.wantY {
			t.Errorf("workgroups(%d) = (%d, %d), want (%d, %d)", tt.n, x, y, tt.wantX, tt.wantY)
		}
		if tt.n > 0 && uint64(x)*uint64(y)*workgroupSize < uint64(tt.n) {
			t.Errorf("workgroups(%d) covers only %d invocations", tt.n, uint64(x)*uint64(y)*workgroupSize)
		}
	}
}

func TestFramePasses(t *testing.T) {
	strict := framePasses(true)
	best := framePasses(false)

	if len(strict) != int(kernelCount) {
		t.Errorf("strict frame runs %d kernels, want %d", len(strict), kernelCount)
	}
	for _, id := range best {
		if id == kernelRasterDepth || id == kernelRasterWinner {
			t.Errorf("best-effort frame should not run kernel %d", id)
		}
	}
	for _, passes := range [][]kernelID{strict, best} {
		if passes[0] != kernelClear || passes[len(passes)-1] != kernelResolve {
			t.Errorf("frame must start with clear and end with resolve: %v", passes)
		}
	}
}
