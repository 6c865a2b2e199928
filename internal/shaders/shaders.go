// Package shaders generates the WGSL sources of the scan and compaction
// kernels for a given partition size.
package shaders

import (
	"bytes"
	_ "embed"
	"fmt"
	"text/template"

	"github.com/gogpu/gpuscan/gpucore"
)

// EntryPoint is the entry point of every kernel module.
const EntryPoint = "main"

// Label names the generated program in device labels and build errors.
const Label = "gpuscan"

//go:embed wgsl/params.wgsl
var paramsWGSL string

//go:embed wgsl/filter.wgsl
var filterWGSL string

//go:embed wgsl/block_scan.wgsl
var blockScanWGSL string

//go:embed wgsl/add_carry.wgsl
var addCarryWGSL string

//go:embed wgsl/scatter.wgsl
var scatterWGSL string

var kernelSources = map[gpucore.Kernel]string{
	gpucore.KernelFilter:    filterWGSL,
	gpucore.KernelBlockScan: blockScanWGSL,
	gpucore.KernelAddCarry:  addCarryWGSL,
	gpucore.KernelScatter:   scatterWGSL,
}

var templates = parseTemplates()

func parseTemplates() map[gpucore.Kernel]*template.Template {
	out := make(map[gpucore.Kernel]*template.Template, len(kernelSources))
	for k, src := range kernelSources {
		t := template.Must(template.New("common").Parse(paramsWGSL))
		out[k] = template.Must(t.New(k.String()).Parse(src))
	}
	return out
}

// Step is one unrolled stride of the up-sweep or down-sweep.
type Step struct {
	Stride int
	Span   int
}

type templateData struct {
	WorkgroupSize int
	UpSweep       []Step
	DownSweep     []Step
}

// Sweeps returns the unrolled up-sweep (strides 1, 2, 4, ...) and
// down-sweep (strides size/2 ... 1) steps for a power-of-two size.
func Sweeps(size int) (up, down []Step) {
	for stride := 1; stride < size; stride *= 2 {
		up = append(up, Step{Stride: stride, Span: stride * 2})
	}
	for i := len(up) - 1; i >= 0; i-- {
		down = append(down, up[i])
	}
	return up, down
}

// Render returns the WGSL source of one kernel for the partition size.
func Render(k gpucore.Kernel, partitionSize int) (string, error) {
	if err := checkSize(partitionSize); err != nil {
		return "", err
	}
	t, ok := templates[k]
	if !ok {
		return "", fmt.Errorf("shaders: no source for kernel %v", k)
	}
	up, down := Sweeps(partitionSize)
	var buf bytes.Buffer
	err := t.ExecuteTemplate(&buf, k.String(), templateData{
		WorkgroupSize: partitionSize,
		UpSweep:       up,
		DownSweep:     down,
	})
	if err != nil {
		return "", fmt.Errorf("shaders: render %v: %w", k, err)
	}
	return buf.String(), nil
}

// Program returns the sources of all kernels for the partition size.
func Program(partitionSize int) (*gpucore.ProgramSource, error) {
	src := &gpucore.ProgramSource{
		Label:   fmt.Sprintf("%s-p%d", Label, partitionSize),
		Modules: make([]gpucore.ModuleSource, 0, gpucore.KernelCount),
	}
	for k := gpucore.KernelFilter; k < gpucore.KernelCount; k++ {
		wgsl, err := Render(k, partitionSize)
		if err != nil {
			return nil, err
		}
		src.Modules = append(src.Modules, gpucore.ModuleSource{
			Kernel:        k,
			WGSL:          wgsl,
			EntryPoint:    EntryPoint,
			WorkgroupSize: partitionSize,
		})
	}
	return src, nil
}

func checkSize(size int) error {
	if size < 2 || size&(size-1) != 0 {
		return fmt.Errorf("shaders: partition size %d is not a power of two >= 2", size)
	}
	return nil
}
