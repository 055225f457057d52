package main

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"statekv/internal/config"
	"statekv/internal/keyenc"
	"statekv/internal/storage"
)

var (
	dataPath   = flag.String("data", "./data/state", "Path to the state directory")
	jsonOutput = flag.Bool("json", false, "Output in JSON format")
)

func main() {
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		return
	}

	engine, err := storage.NewStorageEngine(config.StorageConfig{
		Engine:   "badger",
		DataPath: *dataPath,
	})
	if err != nil {
		log.Fatalf("Failed to open state directory: %v", err)
	}
	defer engine.Close()

	command := args[0]
	switch command {
	case "stats":
		handleStats(engine)
	case "scan":
		handleScan(engine, args[1:])
	case "get":
		handleGet(engine, args[1:])
	case "backup":
		handleBackup(engine, args[1:])
	case "restore":
		handleRestore(engine, args[1:])
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func handleStats(engine storage.StorageEngine) {
	stats := engine.Stats()
	if *jsonOutput {
		data, _ := json.MarshalIndent(stats, "", "  ")
		fmt.Println(string(data))
		return
	}
	for k, v := range stats {
		fmt.Printf("%s: %v\n", k, v)
	}
}

// handleScan lists entries under a hex-encoded physical prefix. An empty
// prefix walks the whole store. Keys that decode as region-prefixed
// context keys are shown structured; anything else falls back to hex.
func handleScan(engine storage.StorageEngine, args []string) {
	var prefix []byte
	if len(args) > 0 {
		var err error
		prefix, err = hex.DecodeString(args[0])
		if err != nil {
			log.Fatalf("Invalid hex prefix %q: %v", args[0], err)
		}
	}

	entries, err := engine.Scan(prefix)
	if err != nil {
		log.Fatalf("Scan failed: %v", err)
	}

	type row struct {
		Region    string `json:"region,omitempty"`
		Namespace string `json:"namespace,omitempty"`
		Key       string `json:"key"`
		ValueLen  int    `json:"value_len"`
	}
	rows := make([]row, 0, len(entries))
	for _, entry := range entries {
		r := row{Key: hex.EncodeToString(entry.Key), ValueLen: len(entry.Value)}
		if len(entry.Key) > 2 {
			if ck, err := keyenc.Decode(entry.Key[2:]); err == nil {
				r.Region = hex.EncodeToString(entry.Key[:2])
				r.Namespace = string(ck.Namespace)
				r.Key = string(ck.Key)
			}
		}
		rows = append(rows, r)
	}

	if *jsonOutput {
		data, _ := json.MarshalIndent(rows, "", "  ")
		fmt.Println(string(data))
		return
	}
	for _, r := range rows {
		if r.Region != "" {
			fmt.Printf("region=%s ns=%q key=%q (%d bytes)\n", r.Region, r.Namespace, r.Key, r.ValueLen)
		} else {
			fmt.Printf("key=%s (%d bytes)\n", r.Key, r.ValueLen)
		}
	}
	fmt.Printf("%d entries\n", len(rows))
}

func handleGet(engine storage.StorageEngine, args []string) {
	if len(args) != 1 {
		log.Fatal("Usage: get <hex-key>")
	}
	key, err := hex.DecodeString(args[0])
	if err != nil {
		log.Fatalf("Invalid hex key %q: %v", args[0], err)
	}
	value, err := engine.Get(key)
	if err != nil {
		log.Fatalf("Get failed: %v", err)
	}
	fmt.Println(hex.EncodeToString(value))
}

func handleBackup(engine storage.StorageEngine, args []string) {
	if len(args) != 1 {
		log.Fatal("Usage: backup <path>")
	}
	if err := engine.Backup(args[0]); err != nil {
		log.Fatalf("Backup failed: %v", err)
	}
	fmt.Printf("Backup written to %s\n", args[0])
}

func handleRestore(engine storage.StorageEngine, args []string) {
	if len(args) != 1 {
		log.Fatal("Usage: restore <path>")
	}
	if err := engine.Restore(args[0]); err != nil {
		log.Fatalf("Restore failed: %v", err)
	}
	fmt.Printf("Restored from %s\n", args[0])
}

func printUsage() {
	fmt.Printf(`State Inspection Tool

Opens a local state directory offline and inspects or snapshots its
contents. Keys are addressed in their physical (region-prefixed, encoded)
form; scan decodes them back to namespace and key where possible.

Usage:
  %s [options] <command> [args]

Commands:
  stats                 Show storage engine statistics
  scan [hex-prefix]     List entries, optionally under a physical prefix
  get <hex-key>         Fetch one value by physical key
  backup <path>         Write a full snapshot to path
  restore <path>        Load a snapshot from path

Options:
  -data string
        Path to the state directory (default "./data/state")
  -json
        Output in JSON format

Examples:
  %s -data ./data/state scan
  %s -data ./data/state backup /tmp/state.bak
`, os.Args[0], os.Args[0], os.Args[0])
}
