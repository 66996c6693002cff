package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var credentialArgs = []string{
	"--service-principal-app-id", "app",
	"--service-principal-secret", "secret",
	"--service-principal-tenant-id", "tenant",
	"--subscription-id", "sub",
	"--resource-group", "rg",
}

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"AZURE_SP_APP_ID", "AZURE_SP_SECRET", "AZURE_SP_TENANT_ID",
		"AZURE_SUBSCRIPTION_ID", "AZURE_RESOURCE_GROUP", "SLACK_HOOK",
		"REDIS_URL", "REDIS_KEY_PREFIX", "REDIS_POOL_SIZE", "REDIS_MAX_RETRIES",
		"REDIS_DIAL_TIMEOUT", "HTTP_PORT", "LOG_LEVEL", "LOG_FORMAT",
		"LEADER_ELECT", "POD_NAMESPACE", "POD_NAME", "LEADER_ELECTION_DURATION",
		"LEADER_ELECTION_RENEW_DEADLINE", "LEADER_ELECTION_RETRY_PERIOD",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("load with defaults", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load(append(credentialArgs, "--container-service-name", "cs"))
		require.NoError(t, err)

		assert.Equal(t, 60*time.Second, cfg.Sleep)
		assert.Equal(t, time.Duration(0), cfg.MaxBackoff)
		assert.Equal(t, 5, cfg.OverProvision)
		assert.Equal(t, 600*time.Second, cfg.IdleThreshold)
		assert.Equal(t, 1, cfg.SpareAgents)
		assert.Equal(t, 1500*time.Second, cfg.InstanceInitTime)
		assert.Equal(t, 100, cfg.MaxAgentPoolSize)
		assert.Equal(t, "acs-engine", cfg.Naming)
		assert.Equal(t, "error", cfg.LogLevel)
		assert.Equal(t, "json", cfg.LogFormat)
		assert.Equal(t, "8080", cfg.HTTPPort)
		assert.Equal(t, "acs-autoscaler", cfg.RedisKeyPrefix)
		assert.Equal(t, 10, cfg.RedisPoolSize)
		assert.Equal(t, 3, cfg.RedisMaxRetries)
		assert.Equal(t, 5*time.Second, cfg.RedisDialTimeout)
		assert.Equal(t, TopologyFixed, cfg.Topology())
		assert.Equal(t, "rg/cs", cfg.ClusterID())
		assert.False(t, cfg.LeaderElect)
		assert.Equal(t, "kube-system", cfg.LeaderElectNamespace)
		assert.Equal(t, "acs-autoscaler", cfg.LeaderElectLockName)
		assert.Equal(t, 15*time.Second, cfg.LeaderElectionDuration)
	})

	t.Run("leader election from env", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("LEADER_ELECT", "true")
		t.Setenv("POD_NAMESPACE", "autoscaler")
		t.Setenv("POD_NAME", "acs-autoscaler-0")

		cfg, err := Load(append(credentialArgs, "--container-service-name", "cs"))
		require.NoError(t, err)
		assert.True(t, cfg.LeaderElect)
		assert.Equal(t, "autoscaler", cfg.LeaderElectNamespace)
		assert.Equal(t, "acs-autoscaler-0", cfg.PodName)
	})

	t.Run("credentials from env", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("AZURE_SP_APP_ID", "env-app")
		t.Setenv("AZURE_SP_SECRET", "env-secret")
		t.Setenv("AZURE_SP_TENANT_ID", "env-tenant")
		t.Setenv("AZURE_SUBSCRIPTION_ID", "env-sub")
		t.Setenv("REDIS_URL", "redis://redis.example.com:6379/0")
		t.Setenv("REDIS_DIAL_TIMEOUT", "2s")

		cfg, err := Load([]string{"--resource-group", "rg", "--container-service-name", "cs"})
		require.NoError(t, err)

		assert.Equal(t, "env-app", cfg.ServicePrincipalAppID)
		assert.Equal(t, "env-secret", cfg.ServicePrincipalSecret)
		assert.Equal(t, "env-tenant", cfg.ServicePrincipalTenantID)
		assert.Equal(t, "env-sub", cfg.SubscriptionID)
		assert.Equal(t, "redis://redis.example.com:6379/0", cfg.RedisURL)
		assert.Equal(t, 2*time.Second, cfg.RedisDialTimeout)
	})

	t.Run("flags override env", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("AZURE_SP_APP_ID", "env-app")

		cfg, err := Load(append(credentialArgs, "--container-service-name", "cs"))
		require.NoError(t, err)
		assert.Equal(t, "app", cfg.ServicePrincipalAppID)
	})

	t.Run("templated topology", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load(append(credentialArgs,
			"--template-file", "azuredeploy.json",
			"--parameters-file-url", "https://example.com/azuredeploy.parameters.json",
			"--sleep", "30",
			"--max-backoff", "600",
			"--spare-agents", "2",
			"--naming", "vm-suffix",
		))
		require.NoError(t, err)

		assert.Equal(t, TopologyTemplated, cfg.Topology())
		assert.Equal(t, "rg", cfg.ClusterID())
		assert.Equal(t, 30*time.Second, cfg.Sleep)
		assert.Equal(t, 10*time.Minute, cfg.MaxBackoff)
		assert.Equal(t, 2, cfg.SpareAgents)
		assert.Equal(t, "vm-suffix", cfg.Naming)
	})

	t.Run("invalid int env falls back to default", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("REDIS_POOL_SIZE", "many")
		t.Setenv("REDIS_DIAL_TIMEOUT", "not-a-duration")

		cfg, err := Load(append(credentialArgs, "--container-service-name", "cs"))
		require.NoError(t, err)
		assert.Equal(t, 10, cfg.RedisPoolSize)
		assert.Equal(t, 5*time.Second, cfg.RedisDialTimeout)
	})

	t.Run("unknown flag", func(t *testing.T) {
		clearEnv(t)
		_, err := Load([]string{"--no-such-flag"})
		require.Error(t, err)
	})
}

func TestVerbosity(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{args: nil, want: "error"},
		{args: []string{"-v"}, want: "warn"},
		{args: []string{"-vv"}, want: "info"},
		{args: []string{"-vvv"}, want: "debug"},
		{args: []string{"-v", "--log-level", "error"}, want: "error"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			clearEnv(t)
			args := append(append([]string{}, credentialArgs...), "--container-service-name", "cs")
			cfg, err := Load(append(args, tt.args...))
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.LogLevel)
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			ContainerServiceName:     "cs",
			ResourceGroup:            "rg",
			SubscriptionID:           "sub",
			ServicePrincipalAppID:    "app",
			ServicePrincipalSecret:   "secret",
			ServicePrincipalTenantID: "tenant",
			Sleep:                    time.Minute,
			SpareAgents:              1,
			MaxAgentPoolSize:         100,
			Naming:                   "acs-engine",
			LogLevel:                 "info",
		}
	}

	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantError string
	}{
		{name: "valid fixed", mutate: func(c *Config) {}},
		{
			name: "valid templated",
			mutate: func(c *Config) {
				c.ContainerServiceName = ""
				c.TemplateFile = "t.json"
				c.ParametersFile = "p.json"
			},
		},
		{
			name:      "missing credentials",
			mutate:    func(c *Config) { c.ServicePrincipalSecret = "" },
			wantError: "missing Azure credentials",
		},
		{
			name:      "missing subscription",
			mutate:    func(c *Config) { c.SubscriptionID = "" },
			wantError: "subscription_id",
		},
		{
			name:      "missing resource group",
			mutate:    func(c *Config) { c.ResourceGroup = "" },
			wantError: "resource_group",
		},
		{
			name: "template without parameters",
			mutate: func(c *Config) {
				c.ContainerServiceName = ""
				c.TemplateFile = "t.json"
			},
			wantError: "both template and parameters",
		},
		{
			name: "template file and url",
			mutate: func(c *Config) {
				c.ContainerServiceName = ""
				c.TemplateFile = "t.json"
				c.TemplateFileURL = "https://example.com/t.json"
				c.ParametersFile = "p.json"
			},
			wantError: "mutually exclusive",
		},
		{
			name: "template and container service",
			mutate: func(c *Config) {
				c.TemplateFile = "t.json"
				c.ParametersFile = "p.json"
			},
			wantError: "cannot be specified simultaneously",
		},
		{
			name:      "no topology",
			mutate:    func(c *Config) { c.ContainerServiceName = "" },
			wantError: "either container_service_name",
		},
		{
			name:      "zero spare agents",
			mutate:    func(c *Config) { c.SpareAgents = 0 },
			wantError: "spare_agents",
		},
		{
			name:      "zero sleep",
			mutate:    func(c *Config) { c.Sleep = 0 },
			wantError: "sleep",
		},
		{
			name:      "unknown naming",
			mutate:    func(c *Config) { c.Naming = "gke" },
			wantError: "invalid naming",
		},
		{
			name: "leader election renew deadline too long",
			mutate: func(c *Config) {
				c.LeaderElect = true
				c.PodName = "pod"
				c.LeaderElectionDuration = 10 * time.Second
				c.LeaderElectionRenewDeadline = 10 * time.Second
			},
			wantError: "renew deadline",
		},
		{
			name: "leader election without identity",
			mutate: func(c *Config) {
				c.LeaderElect = true
				c.LeaderElectionDuration = 15 * time.Second
				c.LeaderElectionRenewDeadline = 10 * time.Second
			},
			wantError: "POD_NAME",
		},
		{
			name:      "invalid log level",
			mutate:    func(c *Config) { c.LogLevel = "trace" },
			wantError: "invalid log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantError == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantError)
		})
	}
}
