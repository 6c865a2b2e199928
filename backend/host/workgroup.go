package host

// workgroup is the execution state of one group. Invocations of a group
// run in phases; returning from phase is the barrier, so a phase observes
// every write of the phases before it.
type workgroup struct {
	id   int
	size int

	// scratch is the group-shared array.
	scratch []int32

	// regs holds one private register per invocation.
	regs []int32
}

func newWorkgroup(size int) *workgroup {
	return &workgroup{
		size:    size,
		scratch: make([]int32, size),
		regs:    make([]int32, size),
	}
}

// reset prepares the workgroup to run group id.
func (w *workgroup) reset(id int) {
	w.id = id
	clear(w.scratch)
	clear(w.regs)
}

// phase runs fn for every local invocation index.
func (w *workgroup) phase(fn func(local int)) {
	for local := range w.size {
		fn(local)
	}
}

// global returns the element index of a local invocation.
func (w *workgroup) global(local int) int {
	return w.id*w.size + local
}

// scanScratch replaces scratch with its exclusive prefix sums using the
// work-efficient up-sweep/down-sweep scheme and returns the total.
// size must be a power of two.
func (w *workgroup) scanScratch() int32 {
	s := w.scratch
	size := w.size

	for stride := 1; stride < size; stride *= 2 {
		span := stride * 2
		w.phase(func(t int) {
			if (t+1)%span == 0 {
				s[t] += s[t-stride]
			}
		})
	}

	var total int32
	w.phase(func(t int) {
		if t == size-1 {
			total = s[t]
			s[t] = 0
		}
	})

	for stride := size / 2; stride >= 1; stride /= 2 {
		span := stride * 2
		w.phase(func(t int) {
			if (t+1)%span == 0 {
				left := s[t-stride]
				s[t-stride] = s[t]
				s[t] += left
			}
		})
	}
	return total
}
