package cli

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/nanomq-go/nanomq/internal/auth"
	"github.com/nanomq-go/nanomq/internal/broker"
	"github.com/nanomq-go/nanomq/internal/config"
	"github.com/nanomq-go/nanomq/internal/logger"
	"github.com/nanomq-go/nanomq/internal/pidfile"
	"github.com/nanomq-go/nanomq/internal/transport"
)

const daemonizedEnv = "NANOMQ_DAEMONIZED"

// RunStart loads configuration, refuses to start over a live instance
// (broker.c's status_check), daemonizes if requested, wires the broker
// core to its listeners and optional bridge, and blocks until signaled.
func RunStart(opts *Options) error {
	if pid, err := pidfile.Check(config.DefaultPIDPath); err == nil && pid != 0 {
		return fmt.Errorf("cli: a broker instance is already running (pid %d)", pid)
	}

	cfg := config.Default()
	if opts.ConfPath != "" {
		loaded, err := config.Load(opts.ConfPath)
		if err != nil {
			return fmt.Errorf("cli: load config: %w", err)
		}
		cfg = loaded
	}
	cfg.ApplyFlags(opts.URL, opts.TQThread, opts.MaxTQThread, opts.Parallel,
		opts.PropertySize, opts.MsqLen, opts.QoSDuration, opts.HTTPEnable, opts.HTTPPort)
	if opts.Daemon {
		cfg.Daemon = true
	}

	if cfg.Daemon && os.Getenv(daemonizedEnv) != "1" {
		return daemonize()
	}

	var authCfg *config.AuthConfig
	if opts.AuthPath != "" {
		loaded, err := config.LoadAuth(opts.AuthPath)
		if err != nil {
			return fmt.Errorf("cli: load auth config: %w", err)
		}
		authCfg = loaded
	}

	var bridgeCfg *config.BridgeConfig
	if opts.BridgePath != "" {
		loaded, err := config.LoadBridge(opts.BridgePath)
		if err != nil {
			return fmt.Errorf("cli: load bridge config: %w", err)
		}
		bridgeCfg = loaded
	}

	PrintConfig(cfg)
	PrintBridgeConfig(bridgeCfg)

	authStore, err := auth.Open("nanomq_auth.db", cfg.AllowAnonymous)
	if err != nil {
		return fmt.Errorf("cli: open auth store: %w", err)
	}
	defer authStore.Close()
	if authCfg != nil {
		if err := authStore.Seed(authCfg); err != nil {
			return fmt.Errorf("cli: seed auth store: %w", err)
		}
	}

	b := broker.New(cfg)
	b.Start()
	defer b.Stop()

	reg := transport.NewRegistry(b)
	tcpSrv := transport.New(cfg.URL, b, authStore, reg)

	var wsSrv *transport.WSServer
	if cfg.Websocket.Enable {
		wsSrv = transport.NewWS(cfg.Websocket.URL, "/mqtt", b, authStore, reg)
	}

	var bridgeCancel context.CancelFunc
	if bridgeCfg != nil {
		br := broker.NewBridge(bridgeCfg, b)
		b.SetBridge(br)
		var bridgeCtx context.Context
		bridgeCtx, bridgeCancel = context.WithCancel(context.Background())
		go func() {
			if err := br.Connect(bridgeCtx); err != nil {
				logger.GetGlobalLogger().Error("bridge connect", "error", err)
			}
		}()
	}

	if err := pidfile.Store(config.DefaultPIDPath); err != nil {
		logger.GetGlobalLogger().Error("store pid file", "error", err)
	}
	defer pidfile.Remove(config.DefaultPIDPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		if err := tcpSrv.Start(ctx); err != nil {
			errCh <- fmt.Errorf("tcp listener: %w", err)
		}
	}()
	if wsSrv != nil {
		go func() {
			if err := wsSrv.Start(ctx); err != nil {
				errCh <- fmt.Errorf("websocket listener: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	tcpSrv.Stop()
	if wsSrv != nil {
		wsSrv.Stop()
	}
	if bridgeCancel != nil {
		bridgeCancel()
	}
	reg.CloseAll()
	return nil
}

// RunStop signals a running instance to terminate, mirroring broker.c's
// broker_stop.
func RunStop() error {
	pid, err := pidfile.Read(config.DefaultPIDPath)
	if err != nil {
		return fmt.Errorf("cli: no running broker instance")
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("cli: signal pid %d: %w", pid, err)
	}
	fmt.Println("broker stopped")
	return nil
}

// daemonize re-execs the current process detached from the controlling
// terminal, the Go equivalent of broker.c's process_daemonize fork. The
// marker env var stops the re-exec from looping.
func daemonize() error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer devNull.Close()

	cmd := exec.Command(exe, os.Args[1:]...)
	cmd.Env = append(os.Environ(), daemonizedEnv+"=1")
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("cli: daemonize: %w", err)
	}
	fmt.Printf("nanomq started as daemon, pid %d\n", cmd.Process.Pid)
	return nil
}
