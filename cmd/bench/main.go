// Command bench drives a synthetic frame pipeline through a cache node and
// exposes optional pprof/Prometheus endpoints.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/IvanBrykalov/framecache/cache"
	pmet "github.com/IvanBrykalov/framecache/metrics/prom"
	"github.com/IvanBrykalov/framecache/node"
)

// frame is the synthetic payload handed through the pipeline.
type frame struct {
	n    int
	data []byte
}

// engine is a minimal in-process Engine: it only records registrations.
type engine struct {
	threads int

	mu    sync.Mutex
	specs []node.FilterSpec[*frame]
}

func (e *engine) Threads() int { return e.threads }

func (e *engine) CreateFilter(spec node.FilterSpec[*frame]) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.specs = append(e.specs, spec)
	return nil
}

func main() {
	// ---- Flags ----
	var (
		threads    = flag.Int("threads", runtime.GOMAXPROCS(0), "engine threads")
		workers    = flag.Int("workers", 0, "number of consumer goroutines (0 = threads)")
		frames     = flag.Int("frames", 100_000, "clip length in frames")
		pattern    = flag.String("pattern", "linear", "access pattern: linear | gappy | random")
		makeLinear = flag.Bool("make_linear", true, "enable batch prefetch")
		size       = flag.Int("size", 0, "initial live capacity (0 = derived)")
		fixed      = flag.Bool("fixed", false, "disable adaptive resizing")
		history    = flag.Int("history", 0, "history bound (0 = default)")
		frameBytes = flag.Int("frame_bytes", 64<<10, "payload size per produced frame")
		cost       = flag.Duration("cost", 200*time.Microsecond, "simulated upstream cost per frame")
		duration   = flag.Duration("duration", 10*time.Second, "benchmark duration")
		adjust     = flag.Duration("adjust", 500*time.Millisecond, "resize interval (0 = never)")
		pressure   = flag.Bool("pressure", false, "resize under memory pressure")
		seed       = flag.Int64("seed", time.Now().UnixNano(), "random seed")

		pprofAddr   = flag.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
		metricsAddr = flag.String("http", ":8080", "serve Prometheus metrics at addr; empty = disabled")
		logLevel    = flag.String("log_level", "info", "log level: debug | info | warn | error")
	)
	flag.Parse()

	// ---- Logging ----
	var level slog.LevelVar
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "bad -log_level: %v\n", err)
		os.Exit(2)
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &level}))

	switch *pattern {
	case "linear", "gappy", "random":
	default:
		log.Error("unknown pattern (use linear, gappy or random)", "pattern", *pattern)
		os.Exit(2)
	}

	// ---- pprof server (on DefaultServeMux) ----
	if *pprofAddr != "" {
		go func() {
			log.Info("pprof: serving", "addr", *pprofAddr)
			log.Error("pprof server stopped", "err", http.ListenAndServe(*pprofAddr, nil))
		}()
	}

	// ---- Prometheus metrics ----
	metrics := pmet.New(nil, "framecache", "bench", nil)
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			log.Info("metrics: serving", "addr", *metricsAddr)
			log.Error("metrics server stopped", "err", http.ListenAndServe(*metricsAddr, mux))
		}()
	}

	// ---- Build node ----
	eng := &engine{threads: *threads}
	reg := node.NewRegistry[*frame]()
	var released atomic.Uint64
	in, err := node.Create[*frame](eng, node.Video,
		node.Params{Size: *size, Fixed: *fixed, MakeLinear: *makeLinear},
		node.Config[*frame]{
			MaxHistory: *history,
			MetricsFor: func(name string) cache.Metrics { return metrics.Node(name) },
			OnRelease:  func(int, *frame, cache.ReleaseReason) { released.Add(1) },
			Registry:   reg,
			Logger:     log,
		})
	if err != nil {
		log.Error("create node", "err", err)
		os.Exit(1)
	}
	defer in.Free()

	var produced atomic.Uint64
	producer := node.ProducerFunc[*frame](func(ctx context.Context, n int) (*frame, error) {
		produced.Add(1)
		if *cost > 0 {
			select {
			case <-time.After(*cost):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return &frame{n: n, data: make([]byte, *frameBytes)}, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	// ---- Periodic resize, as an engine would do ----
	if *adjust > 0 {
		go func() {
			t := time.NewTicker(*adjust)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					reg.AdjustAll(*pressure)
				}
			}
		}()
	}

	// ---- Load generation ----
	workersN := *workers
	if workersN <= 0 {
		workersN = *threads
	}
	frameMax := uint64(*frames - 1)
	seedBase := *seed
	var cursor atomic.Int64
	var total, failed uint64

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(workersN)
	for w := range workersN {
		go func(id int) {
			defer wg.Done()

			// Each worker gets its own RNG (rand.Rand is NOT goroutine-safe).
			r := rand.New(rand.NewSource(seedBase + int64(id)*9973))
			zipf := rand.NewZipf(r, 1.1, 1.0, frameMax)

			next := func() int {
				switch *pattern {
				case "gappy":
					return int(cursor.Add(1+r.Int63n(4)) % int64(*frames))
				case "random":
					return int(zipf.Uint64())
				default:
					return int(cursor.Add(1) % int64(*frames))
				}
			}

			for ctx.Err() == nil {
				atomic.AddUint64(&total, 1)
				if _, err := in.Frame(ctx, next(), producer); err != nil {
					if ctx.Err() == nil {
						log.Warn("frame failed", "err", err)
					}
					atomic.AddUint64(&failed, 1)
				}
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	// ---- Report ----
	st := in.Cache().Stats()
	ops := atomic.LoadUint64(&total)
	prod := produced.Load()
	fmt.Printf("node=%s mode=%s pattern=%s threads=%d workers=%d window=%d dur=%v seed=%d\n",
		in.Name(), in.Mode(), *pattern, *threads, workersN, in.Window(), elapsed, seedBase)
	fmt.Printf("requests=%d (%.0f req/s)  produced=%d  failed=%d  released=%d\n",
		ops, float64(ops)/elapsed.Seconds(), prod, atomic.LoadUint64(&failed), released.Load())
	if ops > 0 {
		fmt.Printf("upstream ratio=%.3f\n", float64(prod)/float64(ops))
	}
	fmt.Printf("pending stats: hits=%d near=%d far=%d\n", st.Hits, st.NearMisses, st.FarMisses)
	fmt.Printf("Len()=%d HistoryLen()=%d MaxLive()=%d\n",
		in.Cache().Len(), in.Cache().HistoryLen(), in.Cache().MaxLive())
}
