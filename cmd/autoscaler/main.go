package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/api"
	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/api/handlers"
	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/autoscaler"
	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/config"
	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/decider"
	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/deployments"
	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/k8s"
	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/leader"
	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/naming"
	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/notifier"
	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/provider/azure"
	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/reconciler"
	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/redisclient"
	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/teardown"
	tmpl "github.com/QSFT/Kubernetes-acs-autoscaler/internal/template"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger, err := setupLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to setup logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Autoscaler stopped", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("Autoscaler shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	clusterID := cfg.ClusterID()

	logger.Info("Starting ACS autoscaler",
		zap.String("cluster", clusterID),
		zap.String("topology", string(cfg.Topology())),
		zap.Duration("sleep", cfg.Sleep),
		zap.Bool("dry_run", cfg.DryRun),
		zap.String("naming", cfg.Naming),
	)

	names, err := naming.New(cfg.Naming)
	if err != nil {
		return err
	}

	kube, err := k8s.NewClient(cfg.KubeConfigPath, logger)
	if err != nil {
		return fmt.Errorf("failed to create Kubernetes client: %w", err)
	}

	provider, err := azure.NewProvider(azure.Credentials{
		TenantID:       cfg.ServicePrincipalTenantID,
		ClientID:       cfg.ServicePrincipalAppID,
		ClientSecret:   cfg.ServicePrincipalSecret,
		SubscriptionID: cfg.SubscriptionID,
	}, cfg.ResourceGroup, cfg.ContainerServiceName, logger)
	if err != nil {
		return fmt.Errorf("failed to create Azure provider: %w", err)
	}

	// Create Redis client
	var redisClient *redisclient.Client
	if cfg.RedisURL != "" {
		redisClient, err = redisclient.NewClient(cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error("Error closing Redis connection", zap.Error(err))
			}
		}()
		if err := redisClient.Ping(ctx); err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		logger.Info("Connected to Redis")
	} else {
		logger.Warn("No Redis URL configured, only the spare agent floor is enforced")
	}

	serializer := deployments.NewRegistry(logger).For(clusterID)

	topology, err := newTopology(ctx, cfg, provider, serializer, logger)
	if err != nil {
		return err
	}

	sequencer := teardown.NewSequencer(provider, names, logger)
	rec := reconciler.New(topology, serializer, sequencer, kube, logger)

	dec := decider.New(redisClient, decider.Policy{
		SpareAgents:        cfg.SpareAgents,
		OverProvision:      cfg.OverProvision,
		IdleThreshold:      cfg.IdleThreshold,
		InstanceInitTime:   cfg.InstanceInitTime,
		ScaleEnabled:       !cfg.NoScale,
		MaintenanceEnabled: maintenanceEnabled(cfg, logger),
	}, logger)

	notifications := notifier.NewMulti(logger)
	if cfg.SlackHook != "" {
		notifications.Add("slack", notifier.NewSlack(cfg.SlackHook, logger))
	}
	if redisClient != nil {
		notifications.Add("redis", notifier.NewPublisher(redisClient))
	}

	status := autoscaler.NewStatus(clusterID, topology.Name(), cfg.DryRun, serializer.LastSubmitted)
	cluster := autoscaler.NewCluster(autoscaler.ClusterOptions{
		Name:        clusterID,
		Nodes:       kube,
		Names:       names,
		MaxPoolSize: cfg.MaxAgentPoolSize,
		Decider:     dec,
		Applier:     rec,
		Notifier:    notifications,
		Status:      status,
		DryRun:      cfg.DryRun,
	}, logger)

	elector := leader.NewElector(kube.GetClientset(), leader.Config{
		Enabled:       cfg.LeaderElect,
		Namespace:     cfg.LeaderElectNamespace,
		LockName:      cfg.LeaderElectLockName,
		Identity:      cfg.PodName,
		LeaseDuration: cfg.LeaderElectionDuration,
		RenewDeadline: cfg.LeaderElectionRenewDeadline,
		RetryPeriod:   cfg.LeaderElectionRetryPeriod,
	}, logger)

	httpServer := newHTTPServer(cfg, status, redisClient, elector, logger)
	if httpServer != nil {
		go func() {
			logger.Info("Starting HTTP server", zap.String("port", cfg.HTTPPort))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP server shutdown error", zap.Error(err))
			}
		}()
	}

	loop := autoscaler.NewLoop(cluster, cfg.Sleep, cfg.MaxBackoff, cfg.Debug, status, logger)
	return elector.Run(ctx, loop.Run)
}

func newTopology(ctx context.Context, cfg *config.Config, provider *azure.Provider, serializer *deployments.Serializer, logger *zap.Logger) (reconciler.Topology, error) {
	if cfg.Topology() == config.TopologyFixed {
		return reconciler.NewFixed(provider, serializer, logger), nil
	}

	template, err := tmpl.Load(ctx, cfg.TemplateFile, cfg.TemplateFileURL)
	if err != nil {
		return nil, fmt.Errorf("failed to load template: %w", err)
	}
	parameters, err := tmpl.LoadParameters(ctx, cfg.ParametersFile, cfg.ParametersFileURL)
	if err != nil {
		return nil, fmt.Errorf("failed to load parameters: %w", err)
	}
	return reconciler.NewTemplated(provider, serializer, template, parameters, logger), nil
}

func maintenanceEnabled(cfg *config.Config, logger *zap.Logger) bool {
	if cfg.NoMaintenance {
		return false
	}
	if cfg.Topology() == config.TopologyFixed && !cfg.BypassSLA {
		logger.Warn("Idle node removal on ACS needs --bypass-sla, maintenance disabled")
		return false
	}
	return true
}

func newHTTPServer(cfg *config.Config, status *autoscaler.Status, redisClient *redisclient.Client, elector *leader.Elector, logger *zap.Logger) *http.Server {
	if cfg.HTTPPort == "" {
		return nil
	}
	// a typed nil would make the handlers ping a nil client
	var pinger handlers.Pinger
	if redisClient != nil {
		pinger = redisClient
	}
	return &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      api.NewRouter(status, pinger, elector, logger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func setupLogger(cfg *config.Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = zapcore.InfoLevel
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(level)

	if cfg.LogFormat == "console" {
		config.Encoding = "console"
		config.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}

	return config.Build()
}
