// Package main is the jsonkv command line client.
//
// jsonkv inspects and mutates a single-file JSON key-value store:
//
//	jsonkv -path store.json set greeting '"hello"'
//	jsonkv -path store.json get greeting
//	jsonkv -path store.json list 1 20
//	jsonkv -path store.json watch
//
// Store defaults can also come from a YAML config file (-config); explicit
// flags win over the file.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"strconv"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/maruel/jsonkv"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "jsonkv: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	version := flag.Bool("version", false, "Print version and exit")
	path := flag.String("path", "store.json", "Backing file for the store")
	cfgPath := flag.String("config", "", "Optional YAML file with store defaults")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	delayed := flag.Duration("delayed-write", 0, "How long to coalesce mutations before persisting; 0 writes synchronously")
	noCache := flag.Bool("no-cache", false, "Disable the in-memory cached view")
	cacheSize := flag.Int("cache-size", 0, "Advisory cache bound; 0 keeps the default")
	flag.Parse()

	if *version {
		printVersion()
		return nil
	}

	ll := &slog.LevelVar{}
	switch *logLevel {
	case "debug":
		ll.Set(slog.LevelDebug)
	case "info":
	case "warn":
		ll.Set(slog.LevelWarn)
	case "error":
		ll.Set(slog.LevelError)
	default:
		return fmt.Errorf("unknown log level: %q", *logLevel)
	}
	logger := slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000", // Like time.TimeOnly plus milliseconds.
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	}))
	slog.SetDefault(logger)

	opts := jsonkv.Options{
		NoCache:      *noCache,
		DelayedWrite: *delayed,
		CacheSize:    *cacheSize,
		Logger:       logger,
	}
	if *cfgPath != "" {
		cfg, err := loadConfig(*cfgPath)
		if err != nil {
			return err
		}
		// Explicit flags win over the config file.
		set := make(map[string]bool)
		flag.Visit(func(f *flag.Flag) {
			set[f.Name] = true
		})
		if !set["path"] && cfg.Path != "" {
			*path = cfg.Path
		}
		if !set["delayed-write"] {
			d, err := cfg.delay()
			if err != nil {
				return err
			}
			opts.DelayedWrite = d
		}
		if !set["no-cache"] {
			opts.NoCache = cfg.NoCache
		}
		if !set["cache-size"] && cfg.CacheSize != 0 {
			opts.CacheSize = cfg.CacheSize
		}
	}

	args := flag.Args()
	if len(args) == 0 {
		return errors.New("missing command: get, set, del, list or watch")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	if args[0] == "watch" {
		// watch needs its observers registered at construction.
		return watch(ctx, *path, opts)
	}

	store, err := jsonkv.New(*path, opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("Failed to close store", "error", err)
		}
	}()

	switch cmd := args[0]; cmd {
	case "get":
		if len(args) != 2 {
			return errors.New("usage: get <key>")
		}
		v, err := store.Read(ctx, args[1])
		if err != nil {
			return err
		}
		if v == nil {
			return fmt.Errorf("key %q not found", args[1])
		}
		fmt.Println(string(v))
		return nil
	case "set":
		if len(args) != 3 {
			return errors.New("usage: set <key> <json-value>")
		}
		var value any = args[2]
		if json.Valid([]byte(args[2])) {
			value = json.RawMessage(args[2])
		}
		return store.Update(ctx, args[1], value)
	case "del":
		if len(args) != 2 {
			return errors.New("usage: del <key>")
		}
		return store.Delete(ctx, args[1])
	case "list":
		return list(ctx, store, args[1:])
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func list(ctx context.Context, store *jsonkv.Store, args []string) error {
	page, size := 1, 50
	var err error
	if len(args) > 2 {
		return errors.New("usage: list [page [size]]")
	}
	if len(args) >= 1 {
		if page, err = strconv.Atoi(args[0]); err != nil || page < 1 {
			return fmt.Errorf("invalid page %q", args[0])
		}
	}
	if len(args) == 2 {
		if size, err = strconv.Atoi(args[1]); err != nil || size < 1 {
			return fmt.Errorf("invalid page size %q", args[1])
		}
	}
	d, err := store.ReadPage(ctx, page, size)
	if err != nil {
		return err
	}
	for k, v := range d.All() {
		fmt.Printf("%s\t%s\n", k, string(v))
	}
	return nil
}

// watch prints every externally made change until interrupted.
func watch(ctx context.Context, path string, opts jsonkv.Options) error {
	changed := make(chan *jsonkv.Dataset, 1)
	errs := make(chan error, 1)
	opts.OnChange = func(d *jsonkv.Dataset) {
		select {
		case changed <- d:
		default:
		}
	}
	opts.OnError = func(err error) {
		select {
		case errs <- err:
		default:
		}
	}
	store, err := jsonkv.New(path, opts)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	slog.Info("Watching store", "path", path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d := <-changed:
			raw, err := json.Marshal(d)
			if err != nil {
				return err
			}
			fmt.Printf("%s %s\n", time.Now().Format(time.TimeOnly), string(raw))
		case err := <-errs:
			slog.Warn("Store error", "error", err)
		}
	}
}

func printVersion() {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		version = info.Main.Version
	}
	fmt.Printf("jsonkv %s\n", version)
}
