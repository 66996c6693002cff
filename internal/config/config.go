package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/deployments"
)

// Topology selects how capacity changes reach the provider.
type Topology string

const (
	// TopologyFixed is an ACS container service with a settable agent count.
	TopologyFixed Topology = "fixed"
	// TopologyTemplated is an acs-engine cluster redeployed from its ARM template.
	TopologyTemplated Topology = "templated"
)

// Config holds all application configuration
type Config struct {
	// Cluster
	ContainerServiceName string
	ResourceGroup        string
	SubscriptionID       string
	KubeConfigPath       string
	TemplateFile         string
	TemplateFileURL      string
	ParametersFile       string
	ParametersFileURL    string
	Naming               string
	MaxAgentPoolSize     int

	// Service principal
	ServicePrincipalAppID    string
	ServicePrincipalSecret   string
	ServicePrincipalTenantID string

	// Scaling policy
	Sleep            time.Duration
	MaxBackoff       time.Duration
	OverProvision    int
	IdleThreshold    time.Duration
	SpareAgents      int
	InstanceInitTime time.Duration
	BypassSLA        bool
	NoScale          bool
	NoMaintenance    bool
	DryRun           bool
	Debug            bool

	// Notifications
	SlackHook string

	// Redis configuration
	RedisURL         string
	RedisKeyPrefix   string
	RedisPoolSize    int
	RedisMaxRetries  int
	RedisDialTimeout time.Duration

	// Status server
	HTTPPort string

	// Leader election
	LeaderElect                 bool
	LeaderElectNamespace        string
	LeaderElectLockName         string
	LeaderElectionDuration      time.Duration
	LeaderElectionRenewDeadline time.Duration
	LeaderElectionRetryPeriod   time.Duration
	PodName                     string

	// Logging configuration
	Verbose   int
	LogLevel  string
	LogFormat string
}

// Load parses command line args, falling back to environment variables for
// credentials and endpoints.
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	fs := pflag.NewFlagSet("acs-autoscaler", pflag.ContinueOnError)

	fs.StringVar(&cfg.ContainerServiceName, "container-service-name", "", "container service name (only for ACS, not acs-engine)")
	fs.StringVar(&cfg.ResourceGroup, "resource-group", getEnv("AZURE_RESOURCE_GROUP", ""), "resource group hosting the cluster")
	fs.StringVar(&cfg.SubscriptionID, "subscription-id", getEnv("AZURE_SUBSCRIPTION_ID", ""), "Azure subscription id")
	fs.StringVar(&cfg.KubeConfigPath, "kubeconfig", "", "full path to kubeconfig file; in-cluster config is used when empty")
	fs.StringVar(&cfg.TemplateFile, "template-file", "", "full path to the ARM template file (acs-engine only)")
	fs.StringVar(&cfg.TemplateFileURL, "template-file-url", "", "URL of the ARM template file (acs-engine only)")
	fs.StringVar(&cfg.ParametersFile, "parameters-file", "", "full path to the ARM template parameters file (acs-engine only)")
	fs.StringVar(&cfg.ParametersFileURL, "parameters-file-url", "", "URL of the ARM template parameters file (acs-engine only)")
	fs.StringVar(&cfg.Naming, "naming", "acs-engine", "agent node naming convention (acs-engine|vm-suffix)")
	fs.IntVar(&cfg.MaxAgentPoolSize, "max-agent-pool-size", 100, "maximum number of agents per pool")

	fs.StringVar(&cfg.ServicePrincipalAppID, "service-principal-app-id", getEnv("AZURE_SP_APP_ID", ""), "service principal app id")
	fs.StringVar(&cfg.ServicePrincipalSecret, "service-principal-secret", getEnv("AZURE_SP_SECRET", ""), "service principal secret")
	fs.StringVar(&cfg.ServicePrincipalTenantID, "service-principal-tenant-id", getEnv("AZURE_SP_TENANT_ID", ""), "service principal tenant id")

	sleep := fs.Int("sleep", 60, "seconds between reconciliation passes")
	maxBackoff := fs.Int("max-backoff", 0, "upper bound in seconds for the backoff delay (0 = unbounded)")
	idleThreshold := fs.Int("idle-threshold", 600, "seconds a node must be idle before it is removed")
	instanceInitTime := fs.Int("instance-init-time", 25*60, "seconds a new node is protected from removal")
	fs.IntVar(&cfg.OverProvision, "over-provision", 5, "extra agents added on scale up")
	fs.IntVar(&cfg.SpareAgents, "spare-agents", 1, "agents kept per pool even when idle (must be >= 1)")
	fs.BoolVar(&cfg.BypassSLA, "bypass-sla", false, "delete individual ACS agents directly; voids the ACS SLA")
	fs.BoolVar(&cfg.NoScale, "no-scale", false, "disable scale up")
	fs.BoolVar(&cfg.NoMaintenance, "no-maintenance", false, "disable idle node removal")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "log intended changes without applying them")
	fs.BoolVar(&cfg.Debug, "debug", false, "stop on the first failed pass")

	fs.StringVar(&cfg.SlackHook, "slack-hook", getEnv("SLACK_HOOK", ""), "Slack webhook URL for scaling messages")

	fs.StringVar(&cfg.RedisURL, "redis-url", getEnv("REDIS_URL", ""), "Redis URL of the scale decision source")
	fs.StringVar(&cfg.RedisKeyPrefix, "redis-key-prefix", getEnv("REDIS_KEY_PREFIX", "acs-autoscaler"), "prefix of the Redis keys")
	cfg.RedisPoolSize = getEnvInt("REDIS_POOL_SIZE", 10)
	cfg.RedisMaxRetries = getEnvInt("REDIS_MAX_RETRIES", 3)
	cfg.RedisDialTimeout = getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second)

	fs.StringVar(&cfg.HTTPPort, "http-port", getEnv("HTTP_PORT", "8080"), "port of the status and metrics server (empty disables it)")

	fs.BoolVar(&cfg.LeaderElect, "leader-elect", getEnvBool("LEADER_ELECT", false), "hold a Lease so only one replica scales the cluster")
	fs.StringVar(&cfg.LeaderElectNamespace, "leader-elect-namespace", getEnv("POD_NAMESPACE", "kube-system"), "namespace of the leader election Lease")
	fs.StringVar(&cfg.LeaderElectLockName, "leader-elect-lock-name", "acs-autoscaler", "name of the leader election Lease")
	cfg.LeaderElectionDuration = getEnvDuration("LEADER_ELECTION_DURATION", 15*time.Second)
	cfg.LeaderElectionRenewDeadline = getEnvDuration("LEADER_ELECTION_RENEW_DEADLINE", 10*time.Second)
	cfg.LeaderElectionRetryPeriod = getEnvDuration("LEADER_ELECTION_RETRY_PERIOD", 2*time.Second)
	cfg.PodName = getEnv("POD_NAME", hostname())

	fs.CountVarP(&cfg.Verbose, "verbose", "v", "debug noise level, specify multiple times for more")
	fs.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", ""), "log level (debug/info/warn/error), overrides -v")
	fs.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "json"), "log format (json/console)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.Sleep = time.Duration(*sleep) * time.Second
	cfg.MaxBackoff = time.Duration(*maxBackoff) * time.Second
	cfg.IdleThreshold = time.Duration(*idleThreshold) * time.Second
	cfg.InstanceInitTime = time.Duration(*instanceInitTime) * time.Second
	if cfg.LogLevel == "" {
		cfg.LogLevel = levelForVerbosity(cfg.Verbose)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks credentials and that exactly one topology is selected.
func (c *Config) Validate() error {
	if c.ServicePrincipalAppID == "" || c.ServicePrincipalSecret == "" || c.ServicePrincipalTenantID == "" {
		return errors.New("missing Azure credentials: service_principal_app_id, service_principal_secret and service_principal_tenant_id are required")
	}
	if c.SubscriptionID == "" {
		return errors.New("subscription_id is required")
	}
	if c.ResourceGroup == "" {
		return errors.New("resource_group is required")
	}

	hasTemplate := c.TemplateFile != "" || c.TemplateFileURL != ""
	hasParameters := c.ParametersFile != "" || c.ParametersFileURL != ""
	if hasTemplate != hasParameters {
		return errors.New("both template and parameters (file or url) must be provided when running on acs-engine")
	}
	if c.TemplateFile != "" && c.TemplateFileURL != "" {
		return errors.New("template_file and template_file_url are mutually exclusive")
	}
	if c.ParametersFile != "" && c.ParametersFileURL != "" {
		return errors.New("parameters_file and parameters_file_url are mutually exclusive")
	}
	if hasTemplate && c.ContainerServiceName != "" {
		return errors.New("template and container_service_name cannot be specified simultaneously")
	}
	if !hasTemplate && c.ContainerServiceName == "" {
		return errors.New("either container_service_name (ACS) or template and parameters (acs-engine) must be provided")
	}

	if c.SpareAgents < 1 {
		return fmt.Errorf("spare_agents must be at least 1, got %d", c.SpareAgents)
	}
	if c.Sleep <= 0 {
		return fmt.Errorf("sleep must be positive, got %s", c.Sleep)
	}
	if c.MaxAgentPoolSize < 1 {
		return fmt.Errorf("max_agent_pool_size must be at least 1, got %d", c.MaxAgentPoolSize)
	}
	if c.Naming != "acs-engine" && c.Naming != "vm-suffix" {
		return fmt.Errorf("invalid naming: %s (must be acs-engine/vm-suffix)", c.Naming)
	}

	if c.LeaderElect {
		if c.PodName == "" {
			return errors.New("POD_NAME is required when leader election is enabled")
		}
		if c.LeaderElectionRenewDeadline >= c.LeaderElectionDuration {
			return errors.New("leader election renew deadline must be shorter than the lease duration")
		}
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug/info/warn/error)", c.LogLevel)
	}

	return nil
}

// Topology returns the cluster topology the flags select.
func (c *Config) Topology() Topology {
	if c.ContainerServiceName != "" {
		return TopologyFixed
	}
	return TopologyTemplated
}

// ClusterID identifies the cluster's single deployment slot.
func (c *Config) ClusterID() string {
	return deployments.ClusterID(c.ResourceGroup, c.ContainerServiceName)
}

func levelForVerbosity(v int) string {
	switch {
	case v <= 0:
		return "error"
	case v == 1:
		return "warn"
	case v == 2:
		return "info"
	default:
		return "debug"
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvBool retrieves a boolean environment variable or returns a default value
func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return defaultVal
		}
		return b
	}
	return defaultVal
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return ""
	}
	return name
}

// getEnvInt retrieves an integer environment variable or returns a default value
func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return defaultVal
		}
		return i
	}
	return defaultVal
}

// getEnvDuration retrieves a duration environment variable or returns a default value
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return defaultVal
		}
		return d
	}
	return defaultVal
}
