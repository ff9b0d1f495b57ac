package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"crisisgo/internal/alert"
	"crisisgo/internal/api"
	"crisisgo/internal/config"
	"crisisgo/internal/location"
	"crisisgo/internal/logging"
	"crisisgo/internal/service/ai"
	"crisisgo/internal/service/assistant"
	"crisisgo/internal/storage"
	"crisisgo/internal/trigger"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const serviceName = "crisisgo"

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   serviceName,
		Short: "Personal emergency alert service",
		RunE:  runServe,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv(config.EnvConfigPath), "Path to config file (json or yaml)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE:  runServe,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create database tables for the configured SQL driver",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cfg.Storage.Driver == "memory" {
				fmt.Println("memory storage needs no migration")
				return nil
			}
			db, err := storage.Open(cfg.Storage)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := storage.Migrate(db, cfg.Storage.Driver); err != nil {
				return err
			}
			fmt.Printf("migrated %s\n", cfg.Storage.Driver)
			return nil
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "classify [text]",
		Short: "Run emergency classification on a message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, serviceName)
			if err != nil {
				return err
			}
			defer logger.Sync()

			classifier, err := ai.New(cmd.Context(), cfg, cfg.Assistant.ClassifierProvider, logger)
			if err != nil {
				return err
			}
			result := classifier.Classify(cmd.Context(), strings.Join(args, " "))
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, serviceName)
	if err != nil {
		log.Printf("init logger: %v", err)
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.New(cfg)
	if err != nil {
		logger.Error("open storage failed", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
		return err
	}
	defer store.Close()

	channels, err := alert.BuildChannels(cfg, logger)
	if err != nil {
		logger.Error("build delivery channels failed", zap.Error(err))
		return err
	}
	defer channels.Close()

	locator := location.New(cfg.Location)
	dispatcher := alert.NewDispatcher(store, channels.Notifier, locator, logger,
		alert.WithConcurrency(cfg.Delivery.Concurrency),
		alert.WithLocateTimeout(time.Duration(cfg.Location.TimeoutSeconds)*time.Second),
	)

	chatProvider, err := ai.New(ctx, cfg, cfg.Assistant.Provider, logger)
	if err != nil {
		logger.Error("init chat provider failed", zap.Error(err))
		return err
	}
	classifier, err := ai.New(ctx, cfg, cfg.Assistant.ClassifierProvider, logger)
	if err != nil {
		logger.Error("init classifier provider failed", zap.Error(err))
		return err
	}
	assistantService := assistant.NewService(chatProvider, classifier, store, store, logger)
	detector := trigger.NewDetector(cfg.Triggers)

	handlers := api.NewHandler(store, dispatcher, assistantService, detector, locator, logger)

	router := gin.New()
	router.Use(logging.GinLogger(logger), logging.GinRecovery(logger))
	handlers.RegisterRoutes(router, cfg.BasicConfig.DemoUserID)

	srv := &http.Server{
		Addr:    cfg.BasicConfig.ServerAddress,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("storage", cfg.Storage.Driver),
			zap.String("provider", chatProvider.Name()),
			zap.Strings("channels", cfg.Delivery.Channels),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			logger.Error("server stopped", zap.Error(err))
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
