package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
)

// Env carries what subcommands need from the process.
type Env struct {
	RedisAddr string
	Stdout    io.Writer
	Stderr    io.Writer
	Logger    *slog.Logger
}

// Usage is printed for unknown commands.
const Usage = `usage:
  backoffice [serve]
  backoffice jobs trigger <task>
  backoffice jobs stats [-json]
  backoffice notify <topic>
  backoffice watch -url ws://host/events/websocket [-session id]`

// Run dispatches an operator subcommand and returns the process exit code.
func Run(ctx context.Context, env Env, args []string) int {
	if len(args) == 0 {
		_, _ = fmt.Fprintln(env.Stderr, Usage)
		return 2
	}
	switch args[0] {
	case "jobs":
		return runJobs(ctx, env, args[1:])
	case "notify":
		if len(args) != 2 {
			_, _ = fmt.Fprintln(env.Stderr, "notify: exactly one topic required")
			return 2
		}
		return withJobs(env, func(c *JobsCLI) error {
			info, err := c.Notify(ctx, args[1])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(env.Stdout, "queued %s id=%s\n", info.Type, info.ID)
			return nil
		})
	case "watch":
		fs := flag.NewFlagSet("watch", flag.ContinueOnError)
		fs.SetOutput(env.Stderr)
		url := fs.String("url", "", "websocket URL of the event stream")
		session := fs.String("session", "", "session id sent as bearer token")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		err := Watch(ctx, WatchOptions{URL: *url, SessionID: *session, Stdout: env.Stdout, Logger: env.Logger})
		if err != nil && !errors.Is(err, context.Canceled) {
			_, _ = fmt.Fprintf(env.Stderr, "watch: %v\n", err)
			return 1
		}
		return 0
	default:
		_, _ = fmt.Fprintln(env.Stderr, Usage)
		return 2
	}
}

func runJobs(ctx context.Context, env Env, args []string) int {
	if len(args) == 0 {
		_, _ = fmt.Fprintln(env.Stderr, Usage)
		return 2
	}
	switch args[0] {
	case "trigger":
		if len(args) != 2 {
			_, _ = fmt.Fprintln(env.Stderr, "jobs trigger: exactly one task required")
			return 2
		}
		return withJobs(env, func(c *JobsCLI) error {
			info, err := c.Trigger(ctx, args[1])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(env.Stdout, "queued %s id=%s\n", info.Type, info.ID)
			return nil
		})
	case "stats":
		fs := flag.NewFlagSet("jobs stats", flag.ContinueOnError)
		fs.SetOutput(env.Stderr)
		asJSON := fs.Bool("json", false, "print JSON")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		return withJobs(env, func(c *JobsCLI) error {
			stats, err := c.InspectQueue(ctx)
			if err != nil {
				return err
			}
			if *asJSON {
				return json.NewEncoder(env.Stdout).Encode(stats)
			}
			_, _ = fmt.Fprintf(env.Stdout, "queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
				stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
			return nil
		})
	default:
		_, _ = fmt.Fprintln(env.Stderr, Usage)
		return 2
	}
}

func withJobs(env Env, fn func(*JobsCLI) error) int {
	c, err := NewJobsCLI(env.RedisAddr)
	if err != nil {
		_, _ = fmt.Fprintln(env.Stderr, err)
		return 1
	}
	defer c.Close()
	if err := fn(c); err != nil {
		_, _ = fmt.Fprintln(env.Stderr, err)
		return 1
	}
	return 0
}
