// Command maintenance runs out-of-band directory tasks:
//
//	maintenance [config flags] reconcile [-dry-run]
//	maintenance [config flags] export
//
// Config flags, environment and the JSON config file are the server's.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, out io.Writer) int {
	cmd, rest, ok := splitCommand(args)
	if !ok {
		fmt.Fprintln(out, "usage: maintenance [config flags] reconcile [-dry-run] | export")
		return 2
	}

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(out)
	dryRun := fs.Bool("dry-run", false, "report orphans without deleting them")
	if err := fs.Parse(rest); err != nil {
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(out, err)
		return 1
	}
	logger := logging.NewJSONLogger(os.Stderr, level)
	newTask := server.NewReconcileMaintenance
	if cmd == "export" {
		newTask = server.NewExportMaintenance
	}
	m, err := newTask(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintln(out, err)
		return 1
	}
	defer m.Close()

	switch cmd {
	case "reconcile":
		report, err := m.Reconcile.Reconcile(ctx, *dryRun)
		if err != nil {
			fmt.Fprintln(out, err)
			return 1
		}
		printReport(out, report, *dryRun)
		if len(report.Errors) > 0 {
			return 1
		}
	case "export":
		key, err := m.Export.Export(ctx)
		if err != nil {
			fmt.Fprintln(out, err)
			return 1
		}
		fmt.Fprintln(out, key)
	}
	return 0
}

// splitCommand finds the subcommand among args; config flags before it are
// left for config.LoadConfig.
func splitCommand(args []string) (string, []string, bool) {
	for i, a := range args {
		switch a {
		case "reconcile", "export":
			return a, args[i+1:], true
		}
	}
	return "", nil, false
}

func printReport(out io.Writer, r *services.ReconcileReport, dryRun bool) {
	fmt.Fprintf(out, "checked: %d\n", r.Checked)
	if len(r.Recent) > 0 {
		fmt.Fprintf(out, "recent, skipped: %d\n", len(r.Recent))
	}
	fmt.Fprintf(out, "orphans: %d\n", len(r.Orphans))
	for _, id := range r.Orphans {
		fmt.Fprintf(out, "  %s\n", id)
	}
	if !dryRun {
		fmt.Fprintf(out, "removed: %d\n", len(r.Removed))
	}
	for _, err := range r.Errors {
		fmt.Fprintf(out, "error: %v\n", err)
	}
}
