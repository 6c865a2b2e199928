package gpuscan

import "fmt"

// Scatter writes every xs[i] with mask[i] == 1 to position addr[i] of the
// result. addr must be the exclusive scan of mask; the result length is
// addr[n-1] + mask[n-1].
//
// Lengths, mask flags and addresses are checked before any work is
// submitted; addresses that are not the exclusive scan of mask are a
// ConfigError.
func Scatter[T Element](e *Engine, xs []T, addr []int32, mask Mask) ([]T, error) {
	n := len(xs)
	if len(mask) != n {
		return nil, &SizeMismatchError{What: "mask", Want: n, Got: len(mask)}
	}
	if len(addr) != n {
		return nil, &SizeMismatchError{What: "addresses", Want: n, Got: len(addr)}
	}
	if err := mask.validate(); err != nil {
		return nil, err
	}

	out := []T{}
	if n == 0 {
		if err := e.run(0, nil, nil); err != nil {
			return nil, err
		}
		return out, nil
	}
	if err := checkAddresses(addr, mask); err != nil {
		return nil, err
	}
	size := int(addr[n-1] + mask[n-1])

	err := e.run(n, nil, func(p *plan) error {
		if size == 0 {
			return nil
		}
		src, err := p.upload(toWords(xs))
		if err != nil {
			return err
		}
		addrBuf, err := p.upload(toWords(addr))
		if err != nil {
			return err
		}
		maskBuf, err := p.upload(toWords([]int32(mask)))
		if err != nil {
			return err
		}
		dst, err := p.alloc(size)
		if err != nil {
			return err
		}
		p.scatter(src, addrBuf, maskBuf, dst, n)
		if err := p.execute(); err != nil {
			return err
		}
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

// checkAddresses reports the first index where addr is not the exclusive
// scan of mask. mask must already hold only 0 and 1.
func checkAddresses(addr []int32, mask Mask) error {
	var want int32
	for i, a := range addr {
		if a != want {
			return &ConfigError{Field: "addresses", Value: fmt.Sprintf("[%d]=%d", i, a),
				Reason: fmt.Sprintf("want %d, the exclusive scan of mask", want)}
		}
		want += mask[i]
	}
	return nil
}
