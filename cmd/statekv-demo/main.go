package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"statekv/internal/asyncexec"
	"statekv/internal/config"
	"statekv/internal/logging"
	"statekv/internal/monitoring"
	"statekv/internal/storage"
	"statekv/internal/table"
)

func main() {
	var configPath string
	var duration time.Duration
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.DurationVar(&duration, "duration", 30*time.Second, "How long to run the demo workload")
	flag.Parse()

	if len(os.Args) > 1 && (os.Args[1] == "-h" || os.Args[1] == "--help") {
		printUsage()
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.NewLogger(&cfg.Logging)

	engine, err := storage.NewStorageEngine(cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to open storage engine: %v", err)
	}
	defer engine.Close()

	metrics := monitoring.NewExecutorMetrics()
	backend := asyncexec.NewBackend(engine, cfg.Executor, logger, metrics)

	var monServer *monitoring.Server
	if cfg.Monitoring.Enabled {
		monServer = monitoring.NewServer(cfg.Monitoring, metrics, engine, logger)
		go func() {
			if err := monServer.Start(); err != nil {
				log.Printf("Monitoring server stopped: %v", err)
			}
		}()
		defer monServer.Stop()
	}

	counts, err := backend.DeclareState("word-counts", table.StringSerializer{}, table.Int64Serializer{})
	if err != nil {
		log.Fatalf("Failed to declare state: %v", err)
	}

	// The task goroutine owns the mailbox; everything below touching task
	// state runs as a continuation on it.
	go backend.Mailbox().Run()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	words := []string{"stream", "state", "batch", "window", "key", "event", "water", "mark"}
	namespace := []byte("window-0")
	deadline := time.After(duration)
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	checkpoint := time.NewTicker(5 * time.Second)
	defer checkpoint.Stop()

	var processed int64
	// Owned by the task goroutine: marks words with an uncommitted
	// read-modify-write so a second one is not issued against a stale read.
	busy := make(map[string]bool)

loop:
	for {
		select {
		case <-sigCh:
			fmt.Println("\nshutting down")
			break loop
		case <-deadline:
			break loop

		case <-checkpoint.C:
			start := time.Now()
			drain := backend.Drain()
			<-drain.Done()
			fmt.Printf("checkpoint: drained in %v, %d events so far\n", time.Since(start), atomic.LoadInt64(&processed))

		case <-ticker.C:
			word := words[rand.Intn(len(words))]
			// All task logic runs on the mailbox goroutine. The put is
			// issued from the get's continuation; once it is submitted,
			// per-key ordering makes it visible to any later get.
			err := backend.Mailbox().Execute(func() {
				if busy[word] {
					return
				}
				busy[word] = true
				backend.Get(counts, namespace, word).OnComplete(func(value interface{}, err error) {
					busy[word] = false
					if err != nil {
						log.Printf("get %q failed: %v", word, err)
						return
					}
					var count int64
					if value != nil {
						count = value.(int64)
					}
					backend.Put(counts, namespace, word, count+1)
					atomic.AddInt64(&processed, 1)
				})
			})
			if err != nil {
				log.Printf("event dropped: %v", err)
			}
		}
	}

	// Final barrier, then report the tallies through an iterator.
	<-backend.Drain().Done()

	iterFut := backend.Iterate(counts, namespace)
	<-iterFut.Done()
	result, err := iterFut.Result()
	if err != nil {
		log.Fatalf("Final scan failed: %v", err)
	}
	it := result.(*asyncexec.Iterator)
	fmt.Printf("final word counts (%d words):\n", it.Len())
	for {
		entry, ok, err := it.Next()
		if err != nil {
			log.Fatalf("Iterator failed: %v", err)
		}
		if !ok {
			break
		}
		fmt.Printf("  %-8s %d\n", entry.Key.Key, entry.Value)
	}

	snap := metrics.Snapshot()
	fmt.Printf("executor: %d requests, %d batches, avg batch %.1f\n",
		snap.RequestsSubmitted, snap.BatchesDispatched, snap.AverageBatchSize)

	if err := backend.Close(); err != nil {
		log.Fatalf("Backend close failed: %v", err)
	}
}

func printUsage() {
	fmt.Printf(`State Access Demo

Runs a word-count task against the asynchronous state backend: every event
performs a non-blocking read-modify-write, a checkpoint drains in-flight
requests every five seconds, and the final tallies are scanned at the end.

Usage:
  %s [options]

Options:
  -config string
        Path to configuration file (defaults apply when omitted)
  -duration duration
        How long to run the workload (default 30s)
  -h, --help
        Show this help message

Environment Variables:
  Configuration can be overridden using variables with the STATEKV_ prefix,
  e.g. STATEKV_STORAGE_ENGINE=redis or STATEKV_MONITORING_ENABLED=true.
`, os.Args[0])
}
