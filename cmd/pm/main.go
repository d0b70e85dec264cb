package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/bytedance/sonic"
	"github.com/spf13/pflag"

	"github.com/GriffinCanCode/AgentOS/pkgmgr/internal/client"
	"github.com/GriffinCanCode/AgentOS/pkgmgr/internal/service"
	"github.com/GriffinCanCode/AgentOS/pkgmgr/internal/shared/types"
)

const usage = `usage: pm [--addr URL] [--timeout DURATION] <command> [args]

commands:
  install PATH                          install a package directory or archive
  uninstall [--clear-data] PACKAGE      remove a package
  list [--names|--summary] [--match GLOB]
  get PACKAGE                           show a package record
  clear PACKAGE                         clear package data
  stats PACKAGE                         show disk usage
  first-boot                            report whether this is the first boot
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	global := pflag.NewFlagSet("pm", pflag.ContinueOnError)
	global.SetOutput(stderr)
	global.SetInterspersed(false)
	global.Usage = func() { fmt.Fprint(stderr, usage) }
	addr := global.String("addr", envOr("PM_ADDR", client.DefaultAddr), "daemon address")
	timeout := global.Duration("timeout", 3*time.Minute, "request timeout")
	if err := global.Parse(args); err != nil {
		return 2
	}

	rest := global.Args()
	if len(rest) == 0 {
		global.Usage()
		return 2
	}

	c := client.New(*addr, *timeout)
	ctx := context.Background()

	cmd, cmdArgs := rest[0], rest[1:]
	switch cmd {
	case "install":
		if len(cmdArgs) != 1 {
			fmt.Fprint(stderr, usage)
			return 2
		}
		resp, err := c.Install(ctx, cmdArgs[0])
		return printTransaction(stdout, stderr, resp, err)

	case "uninstall":
		fs := pflag.NewFlagSet("uninstall", pflag.ContinueOnError)
		fs.SetOutput(stderr)
		clearData := fs.Bool("clear-data", false, "also remove the package data directory")
		if err := fs.Parse(cmdArgs); err != nil || fs.NArg() != 1 {
			fmt.Fprint(stderr, usage)
			return 2
		}
		resp, err := c.Uninstall(ctx, fs.Arg(0), *clearData)
		return printTransaction(stdout, stderr, resp, err)

	case "list":
		fs := pflag.NewFlagSet("list", pflag.ContinueOnError)
		fs.SetOutput(stderr)
		names := fs.Bool("names", false, "print package names only")
		summary := fs.Bool("summary", false, "print persisted summaries without validating")
		match := fs.String("match", "", "glob filter on package names")
		if err := fs.Parse(cmdArgs); err != nil || fs.NArg() != 0 || (*names && *summary) {
			fmt.Fprint(stderr, usage)
			return 2
		}
		view := service.ViewAll
		switch {
		case *names:
			view = service.ViewNames
		case *summary:
			view = service.ViewSummary
		}
		listing, err := c.List(ctx, view, *match)
		if err != nil {
			return fail(stderr, err)
		}
		if view == service.ViewNames {
			for _, name := range listing.Names {
				fmt.Fprintln(stdout, name)
			}
			return 0
		}
		return printJSON(stdout, stderr, listing)

	case "get", "clear", "stats":
		if len(cmdArgs) != 1 {
			fmt.Fprint(stderr, usage)
			return 2
		}
		return packageCommand(ctx, c, cmd, cmdArgs[0], stdout, stderr)

	case "first-boot":
		first, err := c.FirstBoot(ctx)
		if err != nil {
			return fail(stderr, err)
		}
		fmt.Fprintln(stdout, first)
		return 0

	default:
		fmt.Fprintf(stderr, "pm: unknown command %q\n", cmd)
		fmt.Fprint(stderr, usage)
		return 2
	}
}

func packageCommand(ctx context.Context, c *client.Client, cmd, name string, stdout, stderr io.Writer) int {
	switch cmd {
	case "get":
		rec, err := c.Get(ctx, name)
		if err != nil {
			return fail(stderr, err)
		}
		return printJSON(stdout, stderr, rec)
	case "stats":
		stats, err := c.SizeStats(ctx, name)
		if err != nil {
			return fail(stderr, err)
		}
		return printJSON(stdout, stderr, stats)
	default:
		if err := c.ClearCache(ctx, name); err != nil {
			return fail(stderr, err)
		}
		fmt.Fprintf(stdout, "cleared %s\n", name)
		return 0
	}
}

func printTransaction(stdout, stderr io.Writer, resp *types.TransactionResponse, err error) int {
	if err != nil {
		return fail(stderr, err)
	}
	if resp.Pending {
		fmt.Fprintf(stdout, "%s: %s (%s)\n", resp.Package, resp.Message, resp.TransactionID)
		return 0
	}
	if resp.Code != 0 {
		fmt.Fprintf(stderr, "%s: failed (%d): %s\n", resp.Package, resp.Code, resp.Message)
		return 1
	}
	fmt.Fprintf(stdout, "%s: success\n", resp.Package)
	return 0
}

func printJSON(stdout, stderr io.Writer, v interface{}) int {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return fail(stderr, err)
	}
	fmt.Fprintln(stdout, string(data))
	return 0
}

func fail(stderr io.Writer, err error) int {
	fmt.Fprintf(stderr, "pm: %v\n", err)
	return 1
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
