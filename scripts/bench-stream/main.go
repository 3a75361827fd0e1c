// bench-stream measures heap usage and throughput while a generated command
// stream runs through the engine.
//
// Usage:
//
//	go run ./scripts/bench-stream --commands 5000000 --chunk-size 1000000 \
//	  --profile-dir docs/profiles/stream --cpu-profile
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Sumatoshi-tech/shelfrank/pkg/engine"
)

type heapSnapshot struct {
	label     string
	heapInUse uint64
	heapSys   uint64
	heapIdle  uint64
}

type profiler struct {
	dir       string
	snapshots []heapSnapshot
}

func (p *profiler) takeSnapshot(label string) {
	runtime.GC()
	runtime.GC()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	p.snapshots = append(p.snapshots, heapSnapshot{
		label:     label,
		heapInUse: m.HeapInuse,
		heapSys:   m.HeapSys,
		heapIdle:  m.HeapIdle,
	})
	log.Printf("  [heap] %-30s inuse=%9s  sys=%9s  idle=%9s",
		label, humanize.Bytes(m.HeapInuse), humanize.Bytes(m.HeapSys), humanize.Bytes(m.HeapIdle))

	p.writeHeapProfile("heap_" + label + ".prof")
}

func (p *profiler) writeHeapProfile(name string) {
	if p.dir == "" {
		return
	}

	path := filepath.Join(p.dir, name)

	f, err := os.Create(path)
	if err != nil {
		log.Printf("warning: create heap profile %s: %v", path, err)

		return
	}
	defer f.Close()

	if err := pprof.WriteHeapProfile(f); err != nil {
		log.Printf("warning: write heap profile %s: %v", path, err)
	}
}

func main() {
	commands := flag.Int64("commands", 1_000_000, "Number of commands to generate")
	chunkSize := flag.Int64("chunk-size", 250_000, "Commands between heap snapshots")
	queryRatio := flag.Float64("query-ratio", 0.5, "Fraction of commands that are queries")
	seed := flag.Uint64("seed", 1, "Generator seed")
	profileDir := flag.String("profile-dir", "", "Directory to write heap profiles (optional)")
	cpuProfile := flag.Bool("cpu-profile", false, "Write CPU profile to profile-dir/cpu.prof")

	flag.Parse()

	if *chunkSize <= 0 {
		log.Fatal("--chunk-size must be positive")
	}

	if *queryRatio < 0 || *queryRatio >= 1 {
		log.Fatal("--query-ratio must be within [0, 1)")
	}

	if *profileDir != "" {
		if err := os.MkdirAll(*profileDir, 0o755); err != nil {
			log.Fatalf("mkdir profile-dir: %v", err)
		}
	}

	if *cpuProfile {
		if *profileDir == "" {
			log.Fatal("--cpu-profile requires --profile-dir")
		}

		cpuPath := filepath.Join(*profileDir, "cpu.prof")

		cpuFile, err := os.Create(cpuPath)
		if err != nil {
			log.Fatalf("create cpu profile: %v", err)
		}
		defer cpuFile.Close()

		if err := pprof.StartCPUProfile(cpuFile); err != nil {
			log.Fatalf("start cpu profile: %v", err)
		}

		defer pprof.StopCPUProfile()

		log.Printf("CPU profiling enabled -> %s", cpuPath)
	}

	prof := &profiler{dir: *profileDir}
	gen := newGenerator(*commands, *queryRatio, *seed)
	gen.every = *chunkSize
	gen.onBoundary = func(done int64) {
		prof.takeSnapshot(fmt.Sprintf("after_%d_commands", done))
	}

	prof.takeSnapshot("before_processing")

	runner := engine.NewRunner(engine.Config{})

	var checksum int64

	start := time.Now()

	stats, err := runner.Run(context.Background(), gen, func(answer int64) error {
		checksum += answer

		return nil
	})
	if err != nil {
		log.Fatalf("run: %v", err)
	}

	elapsed := time.Since(start)

	prof.takeSnapshot("after_processing")

	fmt.Println()
	fmt.Println("=== Heap Memory Timeline ===")
	fmt.Printf("%-32s %10s %10s %10s\n", "Phase", "InUse", "Sys", "Idle")

	for _, s := range prof.snapshots {
		fmt.Printf("%-32s %10s %10s %10s\n",
			s.label, humanize.Bytes(s.heapInUse), humanize.Bytes(s.heapSys), humanize.Bytes(s.heapIdle))
	}

	fmt.Println()
	fmt.Println("=== Throughput ===")
	fmt.Printf("  commands: %s (prepends %s, appends %s, queries %s)\n",
		humanize.Comma(stats.Commands()), humanize.Comma(stats.Prepends),
		humanize.Comma(stats.Appends), humanize.Comma(stats.Queries))
	fmt.Printf("  elapsed:  %s (%s commands/s, snapshots included)\n",
		elapsed, humanize.Comma(int64(float64(stats.Commands())/elapsed.Seconds())))
	fmt.Printf("  checksum: %d, max answer %s\n", checksum, humanize.Comma(stats.MaxAnswer))
}
