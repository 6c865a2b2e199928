// Command gpuscan runs a prefix sum or a stream compaction on a compute
// backend and reports timings.
//
// Input is n random values in [0, 10) unless -in names a sequence file:
//
//	gpuscan -n 1000000 -threshold 5
//	gpuscan -backend wgpu -mode scan -in data.zst -out sums.lz4 -verify
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand/v2"
	"os"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/gpuscan"
	_ "github.com/gogpu/gpuscan/backend/wgpu"
	"github.com/gogpu/gpuscan/gpucore"
	"github.com/gogpu/gpuscan/internal/seqio"
)

func main() {
	var (
		n         = flag.Int("n", 1<<20, "number of random elements (ignored with -in)")
		threshold = flag.Int("threshold", 5, "predicate operand")
		opName    = flag.String("op", "gt", "predicate: gt, ge, lt, le, eq, ne")
		partition = flag.Int("partition", gpuscan.DefaultPartitionSize, "partition (workgroup) size, a power of two")
		backend   = flag.String("backend", gpuscan.DefaultBackend, fmt.Sprintf("backend %v", gpucore.Backends()))
		seed      = flag.Uint64("seed", 1, "random seed")
		in        = flag.String("in", "", "read input from a sequence file (.lz4 and .zst are compressed)")
		out       = flag.String("out", "", "write the result to a sequence file")
		mode      = flag.String("mode", "compact", "compact or scan")
		verify    = flag.Bool("verify", false, "compare against the sequential reference")
		verbose   = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if *verbose {
		gpuscan.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	op, err := gpucore.ParseCompareOp(*opName)
	if err != nil {
		log.Fatalf("Invalid -op: %v", err)
	}
	pred := gpuscan.Predicate[int32]{Op: op, Value: int32(*threshold)} //nolint:gosec // flag value

	xs, err := loadInput(*in, *n, *seed)
	if err != nil {
		log.Fatalf("Failed to load input: %v", err)
	}

	e, err := gpuscan.New(gpuscan.WithBackendName(*backend), gpuscan.WithPartitionSize(*partition))
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}
	defer e.Close()

	p := message.NewPrinter(language.English)
	p.Printf("backend:   %s\n", e.Info())
	p.Printf("elements:  %d (partition %d)\n", len(xs), e.Config().PartitionSize)

	var result []int32
	switch *mode {
	case "compact":
		result, err = runCompact(e, p, xs, pred, *verify)
	case "scan":
		result, err = runScan(e, p, xs, *verify)
	default:
		err = fmt.Errorf("unknown -mode %q (want compact or scan)", *mode)
	}
	if err != nil {
		e.Close()
		log.Fatalf("Failed: %v", err)
	}

	if *out != "" {
		if err := seqio.WriteFile(*out, result); err != nil {
			e.Close()
			log.Fatalf("Failed to save: %v", err)
		}
		log.Printf("Result saved to %s (%s)\n", *out, seqio.CodecFor(*out))
	}
}

func loadInput(path string, n int, seed uint64) ([]int32, error) {
	if path != "" {
		return seqio.ReadFile(path)
	}
	if n < 0 {
		return nil, fmt.Errorf("negative -n %d", n)
	}
	r := rand.New(rand.NewPCG(seed, seed))
	xs := make([]int32, n)
	for i := range xs {
		xs[i] = int32(r.IntN(10))
	}
	return xs, nil
}

func runCompact(e *gpuscan.Engine, p *message.Printer, xs []int32, pred gpuscan.Predicate[int32], verify bool) ([]int32, error) {
	var (
		got   []int32
		stats *gpuscan.Stats
		want  []int32
		ref   time.Duration
	)
	var g errgroup.Group
	g.Go(func() error {
		var err error
		got, stats, err = gpuscan.CompactWithStats(e, xs, pred)
		return err
	})
	if verify {
		g.Go(func() error {
			start := time.Now()
			want = gpuscan.ReferenceCompact(xs, pred)
			ref = time.Since(start)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	p.Printf("predicate: %s\n", pred)
	p.Printf("selected:  %d\n", stats.Selected)
	p.Printf("levels:    %d (%d dispatches)\n", stats.ScanLevels, stats.Dispatches)
	p.Printf("filter:    %v\n", stats.FilterTime)
	p.Printf("scan:      %v\n", stats.ScanTime)
	p.Printf("scatter:   %v\n", stats.ScatterTime)
	p.Printf("total:     %v\n", stats.Total)
	if verify {
		if err := check(got, want); err != nil {
			return nil, err
		}
		p.Printf("reference: %v (match)\n", ref)
	}
	return got, nil
}

func runScan(e *gpuscan.Engine, p *message.Printer, xs []int32, verify bool) ([]int32, error) {
	var (
		got      []int32
		want     []int32
		dev, ref time.Duration
	)
	var g errgroup.Group
	g.Go(func() error {
		start := time.Now()
		var err error
		got, err = e.Scan(xs)
		dev = time.Since(start)
		return err
	})
	if verify {
		g.Go(func() error {
			start := time.Now()
			want = gpuscan.ReferenceScan(xs)
			ref = time.Since(start)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(got) > 0 {
		p.Printf("total:     %d\n", got[len(got)-1]+xs[len(xs)-1])
	}
	p.Printf("scan:      %v\n", dev)
	if verify {
		if err := check(got, want); err != nil {
			return nil, err
		}
		p.Printf("reference: %v (match)\n", ref)
	}
	return got, nil
}

func check(got, want []int32) error {
	if len(got) != len(want) {
		return fmt.Errorf("verify: %d elements, reference has %d", len(got), len(want))
	}
	if slices.Equal(got, want) {
		return nil
	}
	for i := range want {
		if got[i] != want[i] {
			return fmt.Errorf("verify: element %d is %d, reference has %d", i, got[i], want[i])
		}
	}
	return nil
}
