package gpuscan

import (
	"github.com/gogpu/gpuscan/gpucore"
)

// stage is one kernel dispatch of a plan.
type stage struct {
	kernel  gpucore.Kernel
	buffers []gpucore.BufferID
	params  gpucore.Params
	groups  int
	level   int
}

// plan is the ordered list of dispatches of one invocation together with
// the transient buffers they use. Stages are executed in order with a
// blocking wait after each, so every dispatch boundary is a global barrier.
type plan struct {
	e      *Engine
	owned  []gpucore.BufferID
	stages []stage
	stats  *Stats
}

func (e *Engine) newPlan(stats *Stats) *plan {
	if stats == nil {
		stats = &Stats{}
	}
	return &plan{e: e, stats: stats}
}

// alloc creates a transient buffer of at least one word.
func (p *plan) alloc(words int) (gpucore.BufferID, error) {
	id, err := p.e.backend.Allocate(max(words, 1))
	if err != nil {
		return gpucore.InvalidID, backendErr("allocate", "", err)
	}
	p.owned = append(p.owned, id)
	return id, nil
}

// upload creates a transient buffer holding data.
func (p *plan) upload(data []uint32) (gpucore.BufferID, error) {
	id, err := p.alloc(len(data))
	if err != nil {
		return gpucore.InvalidID, err
	}
	if err := p.e.backend.Upload(id, data); err != nil {
		return gpucore.InvalidID, backendErr("upload", "", err)
	}
	return id, nil
}

func (p *plan) download(id gpucore.BufferID, offset, count int) ([]uint32, error) {
	out, err := p.e.backend.Download(id, offset, count)
	if err != nil {
		return nil, backendErr("download", "", err)
	}
	return out, nil
}

func (p *plan) push(st stage) {
	p.stages = append(p.stages, st)
}

// execute dispatches the pending stages in order and clears them.
func (p *plan) execute() error {
	stages := p.stages
	p.stages = nil

	size := p.e.cfg.PartitionSize
	log := p.e.logger
	for i := range stages {
		st := &stages[i]
		log.Debug("gpuscan: dispatch",
			"kernel", st.kernel.String(),
			"level", st.level,
			"elements", st.params.N,
			"groups", st.groups)

		err := p.e.backend.Dispatch(&gpucore.DispatchDesc{
			Program:   p.e.program,
			Kernel:    st.kernel,
			Buffers:   st.buffers,
			Params:    st.params,
			Groups:    st.groups,
			GroupSize: size,
		})
		if err != nil {
			return backendErr("dispatch", st.kernel.String(), err)
		}
		p.stats.Dispatches++
	}
	return nil
}

// release frees every transient buffer.
func (p *plan) release() {
	for _, id := range p.owned {
		p.e.backend.Free(id)
	}
	p.owned = nil
}

func (p *plan) groups(n int) int {
	return gpucore.GroupsFor(n, p.e.cfg.PartitionSize)
}

// filter queues the predicate kernel writing a 0/1 flag per element.
func (p *plan) filter(src, mask gpucore.BufferID, params gpucore.Params) {
	g := p.groups(int(params.N))
	params.NumGroups = uint32(g)
	p.push(stage{
		kernel:  gpucore.KernelFilter,
		buffers: []gpucore.BufferID{src, mask},
		params:  params,
		groups:  g,
	})
}

// scan queues the dispatches of a multi-level scan of n words from src to
// dst. Each level block-scans its input, scans the group sums with a
// recursive exclusive scan, and adds the scanned sums back as carries.
// Recursion ends at a level that fits in one partition.
func (p *plan) scan(src, dst gpucore.BufferID, n int, inclusive bool, level int) error {
	g := p.groups(n)
	if level == 0 {
		p.stats.Partitions = g
	}
	p.stats.ScanLevels = max(p.stats.ScanLevels, level+1)

	sums, err := p.alloc(g)
	if err != nil {
		return err
	}
	var incl uint32
	if inclusive {
		incl = 1
	}
	p.push(stage{
		kernel:  gpucore.KernelBlockScan,
		buffers: []gpucore.BufferID{src, dst, sums},
		params:  gpucore.Params{N: uint32(n), NumGroups: uint32(g), Inclusive: incl},
		groups:  g,
		level:   level,
	})
	if g == 1 {
		return nil
	}

	carries, err := p.alloc(g)
	if err != nil {
		return err
	}
	if err := p.scan(sums, carries, g, false, level+1); err != nil {
		return err
	}
	p.push(stage{
		kernel:  gpucore.KernelAddCarry,
		buffers: []gpucore.BufferID{dst, carries},
		params:  gpucore.Params{N: uint32(n), NumGroups: uint32(g)},
		groups:  g,
		level:   level,
	})
	return nil
}

// scatter queues the kernel moving selected src words to dst.
func (p *plan) scatter(src, addr, mask, dst gpucore.BufferID, n int) {
	g := p.groups(n)
	p.push(stage{
		kernel:  gpucore.KernelScatter,
		buffers: []gpucore.BufferID{src, addr, mask, dst},
		params:  gpucore.Params{N: uint32(n), NumGroups: uint32(g)},
		groups:  g,
	})
}
