package gpuscan

// Filter evaluates pred on every element and returns the 0/1 selection
// mask, one flag per element.
func Filter[T Element](e *Engine, xs []T, pred Predicate[T]) (Mask, error) {
	if err := pred.validate(); err != nil {
		return nil, err
	}
	n := len(xs)
	out := Mask{}
	err := e.run(n, nil, func(p *plan) error {
		src, err := p.upload(toWords(xs))
		if err != nil {
			return err
		}
		mask, err := p.alloc(n)
		if err != nil {
			return err
		}
		p.filter(src, mask, pred.params(n))
		if err := p.execute(); err != nil {
			return err
		}
		words, err := p.download(mask, 0, n)
		if err != nil {
			return err
		}
		out = Mask(fromWords[int32](words))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
