package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/cors"

	"mcbackend/clients/gateway"
	"mcbackend/config"
	"mcbackend/db"
	"mcbackend/handlers"
	"mcbackend/middleware"
	"mcbackend/services/activity"
	"mcbackend/services/agents"
	"mcbackend/services/autopromote"
	"mcbackend/services/boards"
	"mcbackend/services/gateways"
	"mcbackend/services/liveness"
	"mcbackend/services/notifications"
	"mcbackend/services/pickup"
	"mcbackend/services/taskdeps"
	"mcbackend/services/taskqueue"
	"mcbackend/services/tasks"
	"mcbackend/services/txmanager"
	"mcbackend/usecases/queueworker"
	"mcbackend/usecases/reconciliation"
)

func main() {
	if err := run(); err != nil {
		log.Printf("❌ Fatal error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	alertMiddleware := middleware.NewErrorAlertMiddleware(cfg.AlertConfig, cfg.Environment, "mcbackend")

	// Initialize database connection
	dbConn, err := db.NewConnection(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	if err := db.RunMigrations(dbConn, cfg.DatabaseSchema); err != nil {
		return err
	}

	// Initialize repositories with shared connection
	agentsRepo := db.NewPostgresAgentsRepository(dbConn, cfg.DatabaseSchema)
	tasksRepo := db.NewPostgresTasksRepository(dbConn, cfg.DatabaseSchema)
	gatewaysRepo := db.NewPostgresGatewaysRepository(dbConn, cfg.DatabaseSchema)
	boardsRepo := db.NewPostgresBoardsRepository(dbConn, cfg.DatabaseSchema)
	taskDepsRepo := db.NewPostgresTaskDependenciesRepository(dbConn, cfg.DatabaseSchema)
	approvalsRepo := db.NewPostgresApprovalsRepository(dbConn, cfg.DatabaseSchema)
	activityRepo := db.NewPostgresActivityEventsRepository(dbConn, cfg.DatabaseSchema)

	txManager := txmanager.NewTransactionManager(dbConn)

	// Services
	agentsService := agents.NewAgentsService(agentsRepo)
	tasksService := tasks.NewTasksService(tasksRepo)
	gatewaysService := gateways.NewGatewaysService(gatewaysRepo)
	boardsService := boards.NewBoardsService(boardsRepo)
	taskDepsService := taskdeps.NewTaskDependenciesService(taskDepsRepo)
	activityService := activity.NewActivityService(activityRepo)
	notificationsService := notifications.NewNotificationsService(cfg.NotificationsConfig)
	livenessService := liveness.NewLivenessService(agentsService, activityService)
	taskQueueService := taskqueue.NewTaskQueueService(
		tasksService,
		agentsService,
		boardsService,
		taskDepsService,
		activityService,
		notificationsService,
		txManager,
	)
	pickupService := pickup.NewPickupService(
		tasksService,
		agentsService,
		taskDepsService,
		activityService,
		notificationsService,
		txManager,
		cfg.QueueConfig.MaxClaimedTasks,
	)
	autoPromoteService := autopromote.NewAutoPromoteService(
		tasksService,
		boardsService,
		approvalsRepo,
		activityService,
	)

	// Background schedulers
	gatewayClient := gateway.NewHTTPGatewayClient(cfg.GatewayPollConfig.CallTimeout)
	streamDialer := gateway.NewWebsocketStreamDialer()
	reconciler := reconciliation.NewReconciliationScheduler(
		gatewaysService,
		agentsService,
		livenessService,
		gatewayClient,
		streamDialer,
		cfg.GatewayPollConfig,
	)
	worker := queueworker.NewQueueWorker(taskQueueService, autoPromoteService, cfg.QueueConfig)

	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	if err := reconciler.Start(runCtx); err != nil {
		return err
	}
	defer reconciler.Stop()

	if err := worker.Start(runCtx); err != nil {
		return err
	}
	defer worker.Stop()

	// HTTP boundary
	gatewayCallbacksHandler := handlers.NewGatewayCallbacksHandler(
		livenessService,
		agentsService,
		gatewaysService,
		reconciler,
		cfg.GatewayPollConfig.OfflineAfter,
	)
	queueHandler := handlers.NewQueueHandler(taskQueueService)
	agentTasksHandler := handlers.NewAgentTasksHandler(pickupService, agentsService)

	router := handlers.SetupRouter(gatewayCallbacksHandler, queueHandler, agentTasksHandler)

	allowedOrigins := strings.Split(cfg.CORSAllowedOrigins, ",")
	for i, origin := range allowedOrigins {
		allowedOrigins[i] = strings.TrimSpace(origin)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           alertMiddleware.HTTPMiddleware(c.Handler(router)),
		ReadHeaderTimeout: 30 * time.Second,
	}

	return handleGracefulShutdown(server)
}

func handleGracefulShutdown(server *http.Server) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("✅ Listening on http://localhost%s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("❌ Server error: %v", err)
		}
	}()

	<-stop
	log.Printf("🛑 Shutdown signal received, cleaning up...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("❌ Server shutdown error: %v", err)
		return err
	}

	log.Printf("✅ Server stopped gracefully")
	return nil
}
