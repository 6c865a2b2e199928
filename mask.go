package gpuscan

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
)

// Mask holds one 0/1 flag per input element; 1 marks a selected element.
type Mask []int32

// Count returns the number of selected elements.
func (m Mask) Count() int {
	n := 0
	for _, v := range m {
		if v == 1 {
			n++
		}
	}
	return n
}

// Indices returns the positions of selected elements in ascending order.
func (m Mask) Indices() []int {
	out := make([]int, 0, m.Count())
	for i, v := range m {
		if v == 1 {
			out = append(out, i)
		}
	}
	return out
}

// Bitmap returns the selected positions as a roaring bitmap.
func (m Mask) Bitmap() *roaring.Bitmap {
	bm := roaring.New()
	for i, v := range m {
		if v == 1 {
			bm.Add(uint32(i))
		}
	}
	return bm
}

// MaskFromBitmap builds a mask of length n from a bitmap of selected
// positions. Positions at or past n are ignored.
func MaskFromBitmap(bm *roaring.Bitmap, n int) Mask {
	m := make(Mask, n)
	it := bm.Iterator()
	for it.HasNext() {
		i := int(it.Next())
		if i >= n {
			break
		}
		m[i] = 1
	}
	return m
}

// validate checks that every flag is 0 or 1.
func (m Mask) validate() error {
	for i, v := range m {
		if v != 0 && v != 1 {
			return &ConfigError{Field: "mask", Value: fmt.Sprintf("[%d]=%d", i, v), Reason: "flags must be 0 or 1"}
		}
	}
	return nil
}
