package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"tokendash/pkg/config"
	"tokendash/pkg/logger"
	"tokendash/pkg/rpc"
	"tokendash/pkg/server"
	"tokendash/pkg/tui"
	"tokendash/pkg/wallet"
	"tokendash/pkg/watcher"
)

// Version should be set during build
var Version = "dev"

func main() {
	testFlag := flag.Bool("t", false, "Test configuration and exit")
	testLongFlag := flag.Bool("test", false, "Test configuration and exit")
	jsonFlag := flag.Bool("json", false, "Output test results as JSON")
	dryRunFlag := flag.Bool("dry-run", false, "Perform a trial run with no changes made")
	configFlag := flag.String("config", "", "Path to configuration file")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	serverFlag := flag.Bool("server", false, "Run in headless server mode")
	portFlag := flag.Int("port", 8080, "Port for API server")
	restoreFlag := flag.Bool("restore", false, "Restore the most recent configuration backup and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("tokendash version %s\n", Version)
		os.Exit(0)
	}

	cfgInput := *configFlag
	if cfgInput == "" && len(flag.Args()) > 0 {
		cfgInput = flag.Args()[0]
	}
	path, err := config.GetConfigPath(cfgInput)
	if err != nil {
		fmt.Printf("Error determining config path: %v\n", err)
		os.Exit(1)
	}

	if *restoreFlag {
		if err := config.RestoreLastBackup(path); err != nil {
			fmt.Printf("Error restoring backup for %s: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("Restored last backup to %s\n", path)
		os.Exit(0)
	}

	cfg, err := config.LoadConfigFromFile(path)
	if err != nil {
		fmt.Printf("Error loading config from %s: %v\n", path, err)
		os.Exit(1)
	}
	if err := config.ApplyEnv(&cfg); err != nil {
		fmt.Printf("Error reading environment: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *testFlag || *testLongFlag {
		report, ok := runConfigTest(ctx, path, cfg, *dryRunFlag, *jsonFlag, os.Stdout)
		if *jsonFlag {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			_ = enc.Encode(report)
		}
		if !ok {
			os.Exit(1)
		}
		os.Exit(0)
	}

	if err := config.Validate(cfg); err != nil {
		fmt.Printf("Invalid configuration in %s:\n%v\n", path, err)
		fmt.Printf("Edit the file or set %s_* environment variables.\n", config.EnvPrefix)
		os.Exit(1)
	}

	logOpts := []logger.Option{logger.WithLevel(cfg.LogLevel)}
	logPath := cfg.LogFile
	if logPath == "" && !*serverFlag {
		logPath = filepath.Join(os.TempDir(), "tokendash.log")
	}
	if logPath != "" {
		logOpts = append(logOpts, logger.WithFile(logPath))
	}
	if err := logger.Init(logOpts...); err != nil {
		fmt.Printf("Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	client, err := rpc.Dial(ctx, cfg.RPCURL, cfg.TokenAddress, rpc.WithConfirmInterval(cfg.ConfirmInterval()))
	if err != nil {
		fmt.Printf("Error connecting to %s: %v\n", cfg.RPCURL, err)
		os.Exit(1)
	}
	defer client.Close()

	chainID := cfg.ChainID
	if id, err := client.ChainID(ctx); err != nil {
		logger.Warn(ctx, "could not read chain id", "rpc", cfg.RPCURL, "error", err)
	} else {
		if cfg.ChainID != 0 && id.Int64() != cfg.ChainID {
			logger.Warn(ctx, "chain id mismatch", "configured", cfg.ChainID, "observed", id.Int64())
		}
		chainID = id.Int64()
	}

	session := wallet.NewSession()
	if cfg.AutoConnect && cfg.PrivateKey != "" {
		if err := session.Connect(cfg.PrivateKey); err != nil {
			fmt.Printf("Error loading signing key: %v\n", err)
			os.Exit(1)
		}
	}

	w := watcher.NewWatcher(client, session,
		watcher.WithPollInterval(cfg.PollInterval()),
		watcher.WithConfirmTimeout(cfg.ConfirmTimeout()),
	)
	w.Start(ctx)
	defer w.Stop()

	addr := fmt.Sprintf("127.0.0.1:%d", *portFlag)
	srv := server.NewServer(w)

	if *serverFlag {
		fmt.Printf("Running in server mode on %s...\n", addr)
		if err := srv.Start(ctx, addr); err != nil {
			logger.Error(ctx, "server error", "error", err)
		}
		return
	}

	go func() {
		if err := srv.Start(ctx, addr); err != nil {
			logger.Error(ctx, "server error", "error", err)
		}
	}()

	if err := tui.Start(ctx, w, session, cfg, chainID, Version); err != nil {
		fmt.Printf("Alas, there's been an error: %v\n", err)
	}
}
