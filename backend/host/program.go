package host

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/gogpu/gpuscan/gpucore"
)

// program records the kernels of a build and the workgroup size each was
// declared with.
type program struct {
	label      string
	groupSizes map[gpucore.Kernel]int
}

var (
	entryRe = regexp.MustCompile(`@compute\s*@workgroup_size\(\s*(\d+)\s*(?:,[^)]*)?\)\s*fn\s+(\w+)\s*\(`)
	groupRe = regexp.MustCompile(`@group\(\s*0\s*\)\s*@binding\(\s*(\d+)\s*\)`)
)

// BuildProgram checks each module the way a shader compiler front end
// would for the parts the host relies on: a compute entry point with the
// requested name and workgroup size, and one binding per kernel buffer.
// The kernels themselves are implemented natively.
func (b *Backend) BuildProgram(src *gpucore.ProgramSource) (gpucore.ProgramID, error) {
	if src == nil || len(src.Modules) == 0 {
		return gpucore.InvalidID, fmt.Errorf("host: empty program: %w", gpucore.ErrInvalidProgram)
	}

	p := &program{label: src.Label, groupSizes: make(map[gpucore.Kernel]int, len(src.Modules))}
	for i := range src.Modules {
		m := &src.Modules[i]
		if _, dup := p.groupSizes[m.Kernel]; dup {
			return gpucore.InvalidID, &gpucore.BuildError{
				Label: src.Label, Kernel: m.Kernel,
				Log: fmt.Sprintf("kernel %v defined twice", m.Kernel),
			}
		}
		if log := checkModule(m); log != "" {
			return gpucore.InvalidID, &gpucore.BuildError{Label: src.Label, Kernel: m.Kernel, Log: log}
		}
		p.groupSizes[m.Kernel] = m.WorkgroupSize
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return gpucore.InvalidID, gpucore.ErrClosed
	}
	id := gpucore.ProgramID(b.newID())
	b.programs[id] = p

	b.log().Info("host: program built", "label", src.Label, "id", id, "kernels", len(src.Modules))
	return id, nil
}

// checkModule returns a diagnostic log, empty when the module is usable.
func checkModule(m *gpucore.ModuleSource) string {
	var diag []string
	report := func(format string, args ...any) {
		diag = append(diag, fmt.Sprintf(format, args...))
	}

	if !m.Kernel.Valid() {
		report("unknown kernel %v", m.Kernel)
		return strings.Join(diag, "\n")
	}
	if m.WorkgroupSize < 1 || m.WorkgroupSize > maxWorkgroupInvocations {
		report("workgroup size %d outside [1, %d]", m.WorkgroupSize, maxWorkgroupInvocations)
	}
	if m.Kernel == gpucore.KernelBlockScan && m.WorkgroupSize&(m.WorkgroupSize-1) != 0 {
		report("block scan workgroup size %d is not a power of two", m.WorkgroupSize)
	}

	found := false
	for _, match := range entryRe.FindAllStringSubmatchIndex(m.WGSL, -1) {
		name := m.WGSL[match[4]:match[5]]
		if name != m.EntryPoint {
			continue
		}
		found = true
		size, _ := strconv.Atoi(m.WGSL[match[2]:match[3]])
		if size != m.WorkgroupSize {
			report("line %d: entry point %q declares workgroup_size(%d), requested %d",
				lineOf(m.WGSL, match[0]), name, size, m.WorkgroupSize)
		}
	}
	if !found {
		report("entry point %q not found", m.EntryPoint)
	}

	bindings := make(map[int]bool)
	for _, match := range groupRe.FindAllStringSubmatch(m.WGSL, -1) {
		n, _ := strconv.Atoi(match[1])
		if bindings[n] {
			report("binding %d declared twice", n)
		}
		bindings[n] = true
	}
	for n := 0; n <= m.Kernel.Bindings(); n++ {
		if !bindings[n] {
			report("missing @group(0) @binding(%d)", n)
		}
	}

	return strings.Join(diag, "\n")
}

func lineOf(src string, offset int) int {
	return strings.Count(src[:offset], "\n") + 1
}

// ReleaseProgram forgets a program.
func (b *Backend) ReleaseProgram(id gpucore.ProgramID) {
	b.mu.Lock()
	delete(b.programs, id)
	b.mu.Unlock()
}
