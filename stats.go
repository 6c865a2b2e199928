package gpuscan

import (
	"fmt"
	"time"
)

// Stats reports what one engine invocation did.
type Stats struct {
	// Backend is the name of the backend that ran the kernels.
	Backend string

	// Elements is the input length.
	Elements int

	// Selected is the number of elements that passed the predicate.
	Selected int

	// Partitions is the number of first-level workgroups.
	Partitions int

	// ScanLevels is the depth of the multi-level scan.
	ScanLevels int

	// Dispatches counts kernel dispatches across all stages.
	Dispatches int

	FilterTime  time.Duration
	ScanTime    time.Duration
	ScatterTime time.Duration
	Total       time.Duration
}

// String returns a one-line summary.
func (s *Stats) String() string {
	return fmt.Sprintf("%s: %d elements, %d selected, %d partitions, %d scan levels, %d dispatches "+
		"(filter %v, scan %v, scatter %v, total %v)",
		s.Backend, s.Elements, s.Selected, s.Partitions, s.ScanLevels, s.Dispatches,
		s.FilterTime, s.ScanTime, s.ScatterTime, s.Total)
}
