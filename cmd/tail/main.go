package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentview/console/pkg/logstream"
)

func main() {
	var (
		agent      = flag.String("agent", "", "agent name to follow (required)")
		endpoint   = flag.String("url", "", "WebSocket URL of the agent's log stream (required)")
		maxLines   = flag.Int("max-lines", logstream.DefaultMaxLines, "maximum lines kept in memory")
		noRetry    = flag.Bool("no-reconnect", false, "exit instead of reconnecting on connection loss")
		maxRetries = flag.Int("max-retries", 0, "maximum reconnect attempts, 0 for unbounded")
		timestamps = flag.Bool("timestamps", false, "prefix each line with its timestamp")
	)
	flag.Parse()

	if *agent == "" || *endpoint == "" {
		flag.Usage()
		os.Exit(2)
	}

	done := make(chan struct{}, 1)

	client, err := logstream.New(logstream.Options{
		Agent:                *agent,
		Endpoint:             *endpoint,
		MaxLines:             *maxLines,
		DisableReconnect:     *noRetry,
		MaxReconnectAttempts: *maxRetries,
		OnLine: func(line logstream.Line) {
			printLine(line, *timestamps)
		},
		OnStateChange: func(state logstream.ConnState) {
			if state == logstream.StateDisconnected || state == logstream.StateError {
				select {
				case done <- struct{}{}:
				default:
				}
			}
		},
	})
	if err != nil {
		log.Fatalf("Failed to start stream: %v", err)
	}

	// SIGCONT resumes a stream paused by terminal job control; SIGINT and
	// SIGTERM shut down cleanly.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGCONT)

	for {
		select {
		case sig := <-sigCh:
			if sig == syscall.SIGCONT {
				client.Resume()
				continue
			}
			client.Disconnect()
			return
		case <-done:
			if err := client.Err(); err != nil {
				log.Fatalf("Stream ended: %v", err)
			}
			return
		}
	}
}

func printLine(line logstream.Line, withTimestamps bool) {
	prefix := ""
	switch line.Kind {
	case logstream.KindStderr:
		prefix = "! "
	case logstream.KindSystem:
		prefix = "* "
	case logstream.KindInput:
		prefix = "> "
	}

	if withTimestamps {
		ts := time.UnixMilli(line.Timestamp).Format("15:04:05.000")
		fmt.Printf("%s %s%s\n", ts, prefix, line.Content)
		return
	}
	fmt.Printf("%s%s\n", prefix, line.Content)
}
