package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/halcyonlabs/claimd/config"
	"github.com/halcyonlabs/claimd/errors"
	"github.com/halcyonlabs/claimd/logger"
	"github.com/halcyonlabs/claimd/server"
	"github.com/halcyonlabs/claimd/sym"
)

// ServeCmd starts the claimd server
var ServeCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   sym.ClaimOpen + " Start the claimd server",
	Long: `Start the claim engine: the daily batch scheduler, the HTTP/WebSocket
API, and live progress streaming for connected clients.`,
	RunE: runServe,
}

var (
	servePort      int
	serveDBPath    string
	serveNoSched   bool
	serveNoWatcher bool
)

func init() {
	ServeCmd.Flags().IntVarP(&servePort, "port", "p", 0, "HTTP port (overrides config)")
	ServeCmd.Flags().StringVar(&serveDBPath, "db-path", "", "Custom database path (overrides config)")
	ServeCmd.Flags().BoolVar(&serveNoSched, "no-scheduler", false, "Disable the periodic batch scheduler")
	ServeCmd.Flags().BoolVar(&serveNoWatcher, "no-config-watch", false, "Disable config file watching")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	if serveNoSched {
		cfg.Scheduler.Enabled = false
	}

	port := cfg.Server.Port
	if servePort != 0 {
		port = servePort
	}
	if port == 0 {
		port = config.DefaultServerPort
	}

	database, err := openDatabase(serveDBPath)
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer database.Close()

	printStartupBanner(cfg)

	srv, err := server.NewServer(database, cfg, nil, logger.Logger)
	if err != nil {
		return errors.Wrap(err, "failed to create server")
	}

	if !serveNoWatcher {
		if configPath := config.ConfigFilePath(); configPath != "" {
			if err := srv.WatchConfig(configPath); err != nil {
				logger.Logger.Warnw("Config watching disabled", "error", err.Error())
			}
		}
	}

	// Graceful shutdown on SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Logger.Infow(fmt.Sprintf("%s Received signal, shutting down", sym.ClaimClose), "signal", sig.String())
		if err := srv.Stop(); err != nil {
			logger.Logger.Errorw("Shutdown error", "error", err.Error())
		}
	}()

	if err := srv.Start(port); err != nil {
		return errors.Wrap(err, "server failed")
	}

	pterm.Success.Println("claimd stopped")
	return nil
}
