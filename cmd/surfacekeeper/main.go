// CLAUDE:SUMMARY CLI entry point for surfacekeeper: ingest fragments, audit codes, rescale textures, list runs, serve HTTP or MCP.
// Command surfacekeeper maintains the laminate product index.
//
// Usage:
//
//	surfacekeeper ingest -config surfacekeeper.yaml          # run configured sources
//	surfacekeeper ingest -index products.json -fragments -   # JSONL fragments on stdin
//	surfacekeeper audit  -index products.json [-fix]         # check stored codes
//	surfacekeeper scale  -index products.json                # recompute texture_scale
//	surfacekeeper runs   -ledger surfacekeeper.db            # recent runs
//	surfacekeeper serve  -config surfacekeeper.yaml          # read-only HTTP API
//	surfacekeeper mcp    -config surfacekeeper.yaml          # MCP tools over stdio
//
// Exit status is 0 on a clean run, 2 when the run finished with unresolved
// codes or failed producers, and 1 on a fatal error.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/surfacekeeper/catalog"
)

const version = "0.1.0"

type options struct {
	configPath string
	indexPath  string
	ledgerPath string
	noLedger   bool
	fragments  string
	fix        bool
	addr       string
	limit      int
}

func main() {
	if len(os.Args) < 2 || os.Args[1] == "-h" || os.Args[1] == "help" {
		usage()
		os.Exit(1)
	}
	cmd := os.Args[1]

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	var o options
	fs.StringVar(&o.configPath, "config", "", "path to surfacekeeper.yaml config file")
	fs.StringVar(&o.indexPath, "index", "", "path to the JSON product index")
	fs.StringVar(&o.ledgerPath, "ledger", "", "path to the SQLite run ledger")
	fs.BoolVar(&o.noLedger, "no-ledger", false, "do not record runs")
	fs.StringVar(&o.fragments, "fragments", "", "ingest: JSONL fragments file, - for stdin (replaces configured sources)")
	fs.BoolVar(&o.fix, "fix", false, "audit: write repaired codes back to the index")
	fs.StringVar(&o.addr, "addr", "", "serve: listen address")
	fs.IntVar(&o.limit, "limit", 20, "runs: how many runs to list")
	logLevel := fs.String("log-level", "info", "log level: debug, info, warn, error")
	fs.Parse(os.Args[2:])

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	status, err := run(ctx, logger, cmd, o)
	stop()
	if err != nil {
		logger.Error("surfacekeeper: fatal", "command", cmd, "error", err)
		os.Exit(int(catalog.StatusFatal))
	}
	os.Exit(int(status))
}

func run(ctx context.Context, logger *slog.Logger, cmd string, o options) (catalog.Status, error) {
	cfg, err := resolveConfig(o)
	if err != nil {
		return catalog.StatusFatal, err
	}
	k, err := catalog.New(cfg, logger)
	if err != nil {
		return catalog.StatusFatal, fmt.Errorf("init: %w", err)
	}
	defer k.Close()

	switch cmd {
	case "ingest":
		producers, err := k.Producers()
		if err != nil {
			return catalog.StatusFatal, err
		}
		if o.fragments != "" {
			producers = []catalog.Producer{catalog.NewJSONLFile("fragments", o.fragments, logger)}
		}
		if len(producers) == 0 {
			return catalog.StatusFatal, fmt.Errorf("ingest: no sources configured and no -fragments given")
		}
		res, err := k.Ingest(ctx, producers...)
		if res != nil {
			printJSON(res)
		}
		if err != nil {
			return catalog.StatusFatal, err
		}
		return res.Status, nil

	case "audit":
		res, err := k.Audit(ctx, o.fix)
		if res != nil {
			printJSON(res)
		}
		if err != nil {
			return catalog.StatusFatal, err
		}
		return res.Status, nil

	case "scale":
		res, err := k.Scale(ctx)
		if res != nil {
			printJSON(res)
		}
		if err != nil {
			return catalog.StatusFatal, err
		}
		return res.Status, nil

	case "runs":
		runs, err := k.Runs(ctx, o.limit)
		if err != nil {
			return catalog.StatusFatal, err
		}
		printJSON(runs)
		return catalog.StatusClean, nil

	case "serve":
		if err := k.Serve(ctx, o.addr); err != nil {
			return catalog.StatusFatal, err
		}
		return catalog.StatusClean, nil

	case "mcp":
		srv := mcp.NewServer(&mcp.Implementation{Name: "surfacekeeper", Version: version}, nil)
		k.RegisterMCP(srv)
		logger.Info("surfacekeeper: mcp on stdio", "index", cfg.IndexPath)
		if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
			return catalog.StatusFatal, err
		}
		return catalog.StatusClean, nil
	}

	usage()
	return catalog.StatusFatal, fmt.Errorf("unknown command %q", cmd)
}

// resolveConfig loads the config file, then applies flag overrides.
func resolveConfig(o options) (*catalog.Config, error) {
	cfg := &catalog.Config{}
	if o.configPath != "" {
		c, err := catalog.LoadConfigFile(o.configPath)
		if err != nil {
			return nil, err
		}
		cfg = c
	}
	if o.indexPath != "" {
		cfg.IndexPath = o.indexPath
	}
	if o.ledgerPath != "" {
		cfg.LedgerPath = o.ledgerPath
	}
	if o.noLedger {
		cfg.DisableLedger = true
	}
	return cfg, nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: surfacekeeper <ingest|audit|scale|runs|serve|mcp> [-config file] [-index path] [-ledger path] [flags]")
}
