package cmd

import (
	"context"
	"log"
	httpNet "net/http"
	"os"
	"os/signal"
	"syscall"

	"stock-monitor/internal/delivery/http"
	"stock-monitor/internal/delivery/telegram"
	"stock-monitor/internal/repository"
	"stock-monitor/internal/service"
	"stock-monitor/pkg/logger"

	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run stock-monitor",
	Run:   Start,
}

func Start(cmd *cobra.Command, args []string) {

	// Create a context that is canceled on interrupt signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appDep, err := NewAppDependency(ctx)
	if err != nil {
		log.Fatalf("Failed to create app dependency: %v", err)
	}

	repo, err := repository.NewRepository(appDep.cfg, appDep.db.DB, appDep.log)
	if err != nil {
		log.Fatalf("Failed to create repository: %v", err)
	}

	notifier, err := telegram.NewNotifier(appDep.cfg, appDep.log, appDep.telegram)
	if err != nil {
		log.Fatalf("Failed to create notifier: %v", err)
	}

	services := service.NewService(
		appDep.cfg,
		appDep.log,
		repo,
		appDep.cache,
		notifier,
	)

	if err := services.MonitorEngine.Load(ctx); err != nil {
		log.Fatalf("Failed to load instruments: %v", err)
	}

	// Resume monitoring right away when instruments are already tracked.
	if services.MonitorEngine.Status().InstrumentCount > 0 {
		if err := services.MonitorEngine.Start(ctx); err != nil {
			appDep.log.Error("Failed to start monitor", logger.ErrorField(err))
		}
	}

	httpHandler := http.NewHttpAPIHandler(ctx, appDep.echo, appDep.validator, services)

	telegramHandler := telegram.NewTelegramBotHandler(
		ctx,
		appDep.cfg,
		appDep.log,
		appDep.telegramBot,
		appDep.telegram,
		services,
	)

	apiServer := NewHTTPServer(ctx, appDep, httpHandler)
	go func() {
		if err := apiServer.Start(); err != nil && err != httpNet.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	go func() {
		telegramHandler.Start()
	}()

	if err := services.ReportService.Start(ctx); err != nil {
		log.Fatalf("Failed to schedule daily report: %v", err)
	}

	// Wait for shutdown signal
	<-ctx.Done()
	log.Println("Shutting down gracefully...")

	services.ReportService.Stop()
	services.MonitorEngine.Stop()
	telegramHandler.Stop()

	if err := apiServer.Stop(); err != nil {
		log.Fatalf("Failed to stop HTTP server: %v", err)
	}

	if err := appDep.Close(); err != nil {
		log.Fatalf("Failed to close app dependency: %v", err)
	}
}
