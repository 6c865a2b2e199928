package gpuscan

import "time"

// Compact returns the elements of xs that satisfy pred, in input order.
//
// The pipeline runs filter, multi-level scan and scatter on the device.
// Intermediate buffers stay on the device; only the last address and flag
// are read back to size the output.
//
// Example:
//
//	out, err := gpuscan.Compact(e, []int32{3, 1, 7, 0, 4, 1, 6, 3}, gpuscan.GreaterThan[int32](5))
//	// out == []int32{7, 6}
func Compact[T Element](e *Engine, xs []T, pred Predicate[T]) ([]T, error) {
	return compact(e, xs, pred, nil)
}

// CompactWithStats is Compact that also reports per-stage statistics.
func CompactWithStats[T Element](e *Engine, xs []T, pred Predicate[T]) ([]T, *Stats, error) {
	stats := &Stats{}
	out, err := compact(e, xs, pred, stats)
	if err != nil {
		return nil, nil, err
	}
	return out, stats, nil
}

func compact[T Element](e *Engine, xs []T, pred Predicate[T], stats *Stats) ([]T, error) {
	if err := pred.validate(); err != nil {
		return nil, err
	}
	n := len(xs)
	out := []T{}
	err := e.run(n, stats, func(p *plan) error {
		src, err := p.upload(toWords(xs))
		if err != nil {
			return err
		}
		mask, err := p.alloc(n)
		if err != nil {
			return err
		}
		addr, err := p.alloc(n)
		if err != nil {
			return err
		}

		start := time.Now()
		p.filter(src, mask, pred.params(n))
		if err := p.execute(); err != nil {
			return err
		}
		p.stats.FilterTime = time.Since(start)

		start = time.Now()
		if err := p.scan(mask, addr, n, false, 0); err != nil {
			return err
		}
		if err := p.execute(); err != nil {
			return err
		}
		p.stats.ScanTime = time.Since(start)

		lastAddr, err := p.download(addr, n-1, 1)
		if err != nil {
			return err
		}
		lastFlag, err := p.download(mask, n-1, 1)
		if err != nil {
			return err
		}
		size := int(int32(lastAddr[0]) + int32(lastFlag[0]))
		p.stats.Selected = size
		if size == 0 {
			return nil
		}

		dst, err := p.alloc(size)
		if err != nil {
			return err
		}
		start = time.Now()
		p.scatter(src, addr, mask, dst, n)
		if err := p.execute(); err != nil {
			return err
		}
		p.stats.ScatterTime = time.Since(start)

		words, err := p.download(dst, 0, size)
		if err != nil {
			return err
		}
		out = fromWords[T](words)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
