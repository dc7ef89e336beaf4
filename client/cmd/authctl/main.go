// Command authctl is an interactive client for the auth server. The access
// token lives only as long as the process; the refresh cookie is kept in an
// in-memory jar.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/upb/authflow/client"
	"github.com/upb/authflow/client/redisbroadcast"
	"go.uber.org/zap"
)

type options struct {
	server    string
	redisAddr string
	channel   string
	verbose   bool
}

func parseFlags(args []string) (options, error) {
	opts := options{}
	fs := flag.NewFlagSet("authctl", flag.ContinueOnError)
	fs.StringVar(&opts.server, "server", envOr("AUTHCTL_SERVER", "http://localhost:3000"), "auth server base URL")
	fs.StringVar(&opts.redisAddr, "redis", os.Getenv("AUTHCTL_REDIS_ADDR"), "redis address for cross-process logout (optional)")
	fs.StringVar(&opts.channel, "channel", redisbroadcast.DefaultChannel, "redis channel for session events")
	fs.BoolVar(&opts.verbose, "v", false, "verbose logging")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	return opts, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	logger := zap.NewNop()
	if opts.verbose {
		if logger, err = zap.NewDevelopment(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := client.Config{
		BaseURL: opts.server,
		Logger:  logger,
		OnSessionExpired: func() {
			fmt.Fprintln(os.Stdout, "session expired; please log in again")
		},
	}

	if opts.redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: opts.redisAddr})
		defer rdb.Close()
		cfg.Broadcaster = redisbroadcast.New(rdb, opts.channel, logger)
	}

	c, err := client.New(cfg, client.NewSession())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer c.Close()

	a := newApp(c, os.Stdout)
	a.init(ctx)
	runREPL(ctx, a, bufio.NewScanner(os.Stdin), os.Stdout)
}
