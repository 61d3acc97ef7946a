// Command kbctl is a read-only introspection CLI: it opens the store
// directly (no HTTP hop through kbcoordd) and dumps registry, queue, and
// inbox state as JSON for operators and scripts.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/glenn-edgar/kbcoord/internal/config"
	"github.com/glenn-edgar/kbcoord/internal/kb/job"
	"github.com/glenn-edgar/kbcoord/internal/kb/query"
	"github.com/glenn-edgar/kbcoord/internal/kb/rpcclient"
	"github.com/glenn-edgar/kbcoord/internal/kb/rpcserver"
	"github.com/glenn-edgar/kbcoord/internal/kb/status"
	"github.com/glenn-edgar/kbcoord/internal/kb/stream"
	"github.com/glenn-edgar/kbcoord/internal/store"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "kbctl:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: kbctl <registry|jobs|stream|status|rpc-server|rpc-client> [-config path] [-path=...] [-limit=N] [-offset=N]")
	}
	cmd := args[0]
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	path := fs.String("path", "", "hierarchical path to scope the query to")
	state := fs.String("state", "", "RPC server state filter (new_job|processing|empty)")
	limit := fs.Int("limit", 50, "max rows to return")
	offset := fs.Int("offset", 0, "rows to skip")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	ctx := context.Background()
	db, err := store.Connect(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to store: %w", err)
	}
	defer db.Close()

	var out interface{}
	switch cmd {
	case "registry":
		q := query.New(db)
		if *path != "" {
			q = q.SearchPath(*path)
		}
		out, err = q.Execute(ctx)
	case "jobs":
		if *path == "" {
			return fmt.Errorf("jobs requires -path")
		}
		out, err = job.New(db).ListPending(ctx, *path, *limit, *offset)
	case "stream":
		if *path == "" {
			return fmt.Errorf("stream requires -path")
		}
		out, err = stream.New(db).List(ctx, *path, stream.ListOptions{Limit: *limit, Offset: *offset})
	case "status":
		if *path == "" {
			out, err = status.New(db).List(ctx, *limit, *offset)
		} else {
			out, err = status.New(db).Get(ctx, *path)
		}
	case "rpc-server":
		if *path == "" || *state == "" {
			return fmt.Errorf("rpc-server requires -path and -state")
		}
		out, err = rpcserver.New(db).ListByState(ctx, *path, rpcserver.State(*state), *limit, *offset)
	case "rpc-client":
		var clientPath *string
		if *path != "" {
			clientPath = path
		}
		out, err = rpcclient.New(db).ListWaiting(ctx, clientPath, *limit, *offset)
	default:
		return fmt.Errorf("unknown subcommand %q", cmd)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
