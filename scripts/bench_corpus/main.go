// Command bench_corpus compiles every .onnx file in a directory with
// bounded concurrency and reports per-file latency percentiles, the
// compiler analogue of a gRPC load test, exercising
// internal/ir + internal/emit instead of a gRPC client.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/onnx2c/onnx2c/internal/config"
	"github.com/onnx2c/onnx2c/internal/pipeline"
)

func main() {
	dir := flag.String("dir", ".", "directory of .onnx files to compile")
	concurrency := flag.Int("concurrency", 8, "number of concurrent compiles")
	quantize := flag.Bool("quantize", false, "quantize Conv/MatMul during the bench run")
	flag.Parse()

	files, err := filepath.Glob(filepath.Join(*dir, "*.onnx"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "no .onnx files found under %s\n", *dir)
		os.Exit(1)
	}

	fmt.Printf("🚀 Corpus bench starting: dir=%s, files=%d, concurrency=%d\n", *dir, len(files), *concurrency)

	cfg := config.Defaults()
	cfg.Quantize = *quantize

	var (
		totalOK, totalFail atomic.Int64
		mu                 sync.Mutex
		latencies          []time.Duration
	)

	sem := make(chan struct{}, *concurrency)
	var wg sync.WaitGroup
	start := time.Now()

	for _, f := range files {
		wg.Add(1)
		sem <- struct{}{}
		go func(path string) {
			defer wg.Done()
			defer func() { <-sem }()

			data, err := os.ReadFile(path)
			if err != nil {
				totalFail.Add(1)
				return
			}

			compileStart := time.Now()
			_, err = pipeline.Compile(data, cfg, nil)
			elapsed := time.Since(compileStart)

			if err != nil {
				totalFail.Add(1)
				return
			}
			totalOK.Add(1)
			mu.Lock()
			latencies = append(latencies, elapsed)
			mu.Unlock()
		}(f)
	}

	wg.Wait()
	elapsed := time.Since(start)

	mu.Lock()
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	mu.Unlock()

	ok, fail := totalOK.Load(), totalFail.Load()

	fmt.Println("\n═══════════════════════════════════════════════════")
	fmt.Println("   🏁 CORPUS BENCH RESULTS")
	fmt.Println("═══════════════════════════════════════════════════")
	fmt.Printf("   Duration:      %v\n", elapsed.Round(time.Millisecond))
	fmt.Printf("   Files:         %d\n", len(files))
	fmt.Printf("   Compiled OK:   %d\n", ok)
	fmt.Printf("   Failed:        %d\n", fail)
	fmt.Println()

	if len(latencies) > 0 {
		fmt.Println("   📊 Compile Latency Percentiles:")
		fmt.Printf("      p50:  %v\n", latencies[len(latencies)*50/100])
		fmt.Printf("      p95:  %v\n", latencies[len(latencies)*95/100])
		fmt.Printf("      p99:  %v\n", latencies[len(latencies)*99/100])
		fmt.Printf("      max:  %v\n", latencies[len(latencies)-1])
	}
	fmt.Println("═══════════════════════════════════════════════════")

	if fail > 0 {
		os.Exit(1)
	}
}
