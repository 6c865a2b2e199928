package gpuscan

// Scan returns the exclusive prefix sum of xs: out[i] = xs[0] + ... + xs[i-1]
// and out[0] = 0. Sums wrap on int32 overflow. An empty input yields an
// empty result without touching the device.
func (e *Engine) Scan(xs []int32) ([]int32, error) {
	return e.scan(xs, false)
}

// ScanInclusive returns the inclusive prefix sum of xs:
// out[i] = xs[0] + ... + xs[i].
func (e *Engine) ScanInclusive(xs []int32) ([]int32, error) {
	return e.scan(xs, true)
}

func (e *Engine) scan(xs []int32, inclusive bool) ([]int32, error) {
	n := len(xs)
	out := []int32{}
	err := e.run(n, nil, func(p *plan) error {
		src, err := p.upload(toWords(xs))
		if err != nil {
			return err
		}
		dst, err := p.alloc(n)
		if err != nil {
			return err
		}
		if err := p.scan(src, dst, n, inclusive, 0); err != nil {
			return err
		}
		if err := p.execute(); err != nil {
			return err
		}
		words, err := p.download(dst, 0, n)
		if err != nil {
			return err
		}
		out = fromWords[int32](words)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
