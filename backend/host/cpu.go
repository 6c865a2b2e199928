package host

import (
	"runtime"

	"golang.org/x/sys/cpu"
)

// cpuFeatures reports the SIMD extensions of the host CPU.
func cpuFeatures() []string {
	var f []string
	switch runtime.GOARCH {
	case "amd64", "386":
		if cpu.X86.HasSSE42 {
			f = append(f, "sse4.2")
		}
		if cpu.X86.HasAVX2 {
			f = append(f, "avx2")
		}
		if cpu.X86.HasAVX512F {
			f = append(f, "avx512f")
		}
	case "arm64":
		if cpu.ARM64.HasASIMD {
			f = append(f, "asimd")
		}
		if cpu.ARM64.HasSVE2 {
			f = append(f, "sve2")
		}
	}
	return f
}
