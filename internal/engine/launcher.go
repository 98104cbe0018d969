package engine

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/qrscan-dev/qrscan/internal/wire"
)

// DefaultLaunchTimeout bounds spawning a worker process and dialing its
// channel.
const DefaultLaunchTimeout = 15 * time.Second

// LaunchOptions configure how worker engines come into existence.
type LaunchOptions struct {
	// Command is the worker executable. Defaults to the current
	// executable, which serves the protocol under its worker subcommand.
	Command string

	// Args are passed to Command. Defaults to ["worker"].
	Args []string

	// Addr dials an already-running worker channel (a ws:// URL or
	// host:port) instead of spawning a process.
	Addr string

	// ForceWorker skips native detection entirely.
	ForceWorker bool

	// LaunchTimeout bounds spawn plus dial. Defaults to
	// DefaultLaunchTimeout.
	LaunchTimeout time.Duration
}

// launchWorker produces a worker engine: it dials Addr when configured,
// otherwise spawns the worker process, reads the address it announces on
// stdout, and dials that.
func launchWorker(ctx context.Context, opts LaunchOptions) (*Engine, error) {
	timeout := opts.LaunchTimeout
	if timeout <= 0 {
		timeout = DefaultLaunchTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if opts.Addr != "" {
		ch, err := dial(ctx, opts.Addr)
		if err != nil {
			return nil, err
		}
		return NewWorkerEngine(ch, nil), nil
	}

	command := opts.Command
	if command == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("engine: resolve worker executable: %w", err)
		}
		command = exe
	}
	args := opts.Args
	if len(args) == 0 {
		args = []string{"worker"}
	}

	cmd := exec.Command(command, args...)
	cmd.Stderr = os.Stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("engine: worker stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("engine: start worker: %w", err)
	}
	slog.Debug("Worker process started", "command", command, "pid", cmd.Process.Pid)

	addr, err := readAddressLine(ctx, stdout)
	if err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, fmt.Errorf("engine: worker address handshake: %w", err)
	}

	ch, err := dial(ctx, addr)
	if err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, err
	}
	return NewWorkerEngine(ch, cmd), nil
}

// readAddressLine reads the single address line the worker prints once
// its listener is bound.
func readAddressLine(ctx context.Context, r io.Reader) (string, error) {
	type lineResult struct {
		line string
		err  error
	}
	done := make(chan lineResult, 1)
	go func() {
		line, err := bufio.NewReader(r).ReadString('\n')
		done <- lineResult{line: strings.TrimSpace(line), err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return "", res.err
		}
		if res.line == "" {
			return "", fmt.Errorf("worker announced empty address")
		}
		return res.line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func dial(ctx context.Context, addr string) (*wire.Channel, error) {
	url := addr
	if !strings.HasPrefix(url, "ws://") && !strings.HasPrefix(url, "wss://") {
		url = "ws://" + url + "/"
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil) //nolint:bodyclose // handshake response body is owned by the connection
	if err != nil {
		return nil, fmt.Errorf("engine: dial worker %s: %w", url, err)
	}
	return wire.NewChannel(conn), nil
}
