package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/talkincode/toughpos/config"
	"github.com/talkincode/toughpos/internal/app"
	"github.com/talkincode/toughpos/internal/posapi"
	"github.com/talkincode/toughpos/internal/webserver"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

var configFile string

func loadApp() (*app.Application, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, err
	}
	application := app.NewApplication(cfg)
	application.Init(cfg)
	return application, nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "toughpos",
		Short:         "Multi-tenant point of sale server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "yaml config file")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the web server (default)",
		RunE:  runServe,
	})
	root.AddCommand(&cobra.Command{
		Use:   "initdb",
		Short: "Drop and recreate all tables, then seed",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := loadApp()
			if err != nil {
				return err
			}
			defer application.Release()
			application.InitDb()
			application.Seed()
			zap.S().Info("database initialized")
			return nil
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := loadApp()
			if err != nil {
				return err
			}
			defer application.Release()
			return application.MigrateDB(true)
		},
	})
	return root
}

func runServe(cmd *cobra.Command, args []string) error {
	application, err := loadApp()
	if err != nil {
		return err
	}
	defer application.Release()

	posapi.Init()
	server, err := webserver.NewServer(application)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		zap.S().Infof("received %s, shutting down", sig)
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(ctx)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		zap.S().Error(err)
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}
