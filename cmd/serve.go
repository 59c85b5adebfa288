package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"schoolfee/routes"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the automation scheduler and the admin/webhook HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringP("port", "p", "", "override PORT")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}

	app, err := buildApplication(cmd.Context(), cfg)
	if err != nil {
		logrus.Errorf("Failed to initialize application: %v", err)
		return err
	}
	defer app.close()

	router := routes.SetupRoutes(routes.Dependencies{
		Environment:       cfg.Environment,
		CORSOrigins:       cfg.CORSOrigins,
		JWT:               app.jwt,
		Counters:          app.counters,
		RuleService:       app.rules,
		DeliveryService:   app.delivery,
		Worker:            app.worker,
		HealthChecks:      app.healthChecks,
		TwilioAuthToken:   cfg.TwilioAuthToken,
		StatusCallbackURL: cfg.TwilioStatusCallbackURL,
	})

	server := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   5 * time.Minute, // manual runs pace their sends
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	if err := app.worker.Start(); err != nil {
		return err
	}
	if err := app.cleanup.Start(); err != nil {
		return err
	}

	go func() {
		logrus.Info("🚀 School fee automation server starting on port ", cfg.Port)
		logrus.Info("💖 Health Check: /health")
		logrus.Info("📨 Twilio status webhook: /webhooks/twilio/status")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatal("Failed to start server: ", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	_ = app.worker.Stop()
	_ = app.cleanup.Stop()

	logrus.Info("✅ Server shutdown complete")
	return nil
}
