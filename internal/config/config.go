package config

import (
	"fmt"
	"net"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads the YAML file at configPath, applies environment
// overrides and validates the result. An empty path yields a config built
// from defaults and the environment only.
func LoadConfig(configPath string) (*Config, error) {
	var config Config

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	applyEnvironmentOverrides(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

var (
	EnvAPIKey                = "CLOUDOPS_API_KEY"
	EnvAPIURL                = "CLOUDOPS_API_URL"
	EnvAPIVersion            = "CLOUDOPS_API_VERSION"
	EnvAccountID             = "CLOUDOPS_ACCOUNT_ID"
	EnvLogLevel              = "CLOUDOPS_LOG_LEVEL"
	EnvRedisPassword         = "CLOUDOPS_REDIS_PASSWORD"
	EnvRedisUsername         = "CLOUDOPS_REDIS_USERNAME"
	EnvRedisSentinelUsername = "CLOUDOPS_REDIS_SENTINEL_USERNAME"
	EnvRedisSentinelPassword = "CLOUDOPS_REDIS_SENTINEL_PASSWORD"

	// Names used by the Temporal Cloud samples, honoured when the
	// CLOUDOPS_ variants are unset.
	EnvLegacyAPIKey     = "TEMPORAL_CLIENT_CLOUD_API_KEY"
	EnvLegacyAPIVersion = "TEMPORAL_CLIENT_CLOUD_API_VERSION"
)

func applyEnvironmentOverrides(config *Config) {
	if key := firstEnv(EnvAPIKey, EnvLegacyAPIKey); key != "" {
		config.API.Key = key
	}

	if apiURL := os.Getenv(EnvAPIURL); apiURL != "" {
		config.API.URL = apiURL
	}

	if version := firstEnv(EnvAPIVersion, EnvLegacyAPIVersion); version != "" {
		config.API.Version = version
	}

	if accountID := os.Getenv(EnvAccountID); accountID != "" {
		config.API.AccountID = accountID
	}

	if level := os.Getenv(EnvLogLevel); level != "" {
		config.Log.Level = level
	}

	if redisPassword := os.Getenv(EnvRedisPassword); redisPassword != "" {
		if config.Redis == nil {
			config.Redis = &RedisConfig{}
		}
		config.Redis.Password = redisPassword
	}

	if redisUsername := os.Getenv(EnvRedisUsername); redisUsername != "" {
		if config.Redis == nil {
			config.Redis = &RedisConfig{}
		}
		config.Redis.Username = redisUsername
	}

	if sentinelUsername := os.Getenv(EnvRedisSentinelUsername); sentinelUsername != "" {
		if config.Redis == nil {
			config.Redis = &RedisConfig{}
		}
		if config.Redis.Sentinel == nil {
			config.Redis.Sentinel = &RedisSentinelConfig{}
		}
		config.Redis.Sentinel.SentinelUsername = sentinelUsername
	}

	if sentinelPassword := os.Getenv(EnvRedisSentinelPassword); sentinelPassword != "" {
		if config.Redis == nil {
			config.Redis = &RedisConfig{}
		}
		if config.Redis.Sentinel == nil {
			config.Redis.Sentinel = &RedisSentinelConfig{}
		}
		config.Redis.Sentinel.SentinelPassword = sentinelPassword
	}
}

func validateConfig(config *Config) error {
	err := config.validateAPIConfig()
	if err != nil {
		return err
	}

	err = config.validateLogConfig()
	if err != nil {
		return err
	}

	err = config.validateProvisioningConfig()
	if err != nil {
		return err
	}

	err = config.validateRotationConfig()
	if err != nil {
		return err
	}

	err = config.validateNamespacesConfig()
	if err != nil {
		return err
	}

	err = config.validateServerConfig()
	if err != nil {
		return err
	}

	err = config.validateDistributedConfig()
	if err != nil {
		return err
	}

	if config.Distributed != nil && config.Distributed.Enabled {
		err = config.validateRedisConfig()
		if err != nil {
			return err
		}
	}

	return nil
}

func (c *Config) validateAPIConfig() error {
	if c.API.URL == "" {
		c.API.URL = DefaultAPIConfig.URL
	}

	if err := validateURL(c.API.URL, "api.url"); err != nil {
		return err
	}

	if c.API.Version == "" {
		c.API.Version = DefaultAPIConfig.Version
	}

	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPIConfig.Timeout
	} else if c.API.Timeout < 0 {
		return fmt.Errorf("api.timeout must be positive, got %s", c.API.Timeout)
	}

	if c.API.ReadRetries == 0 {
		c.API.ReadRetries = DefaultAPIConfig.ReadRetries
	} else if c.API.ReadRetries < 0 {
		return fmt.Errorf("api.read_retries must be non-negative, got %d", c.API.ReadRetries)
	}

	return nil
}

func (c *Config) validateLogConfig() error {
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogConfig.Format
	} else {
		switch c.Log.Format {
		case "text", "json":
		default:
			return fmt.Errorf("invalid log format: %s, options are text or json", c.Log.Format)
		}
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogConfig.Level
	} else {
		switch c.Log.Level {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("invalid log level: %s, options are debug, info, warn, error", c.Log.Level)
		}
	}

	return nil
}

func (c *Config) validateProvisioningConfig() error {
	if c.Provisioning.PollInterval == 0 {
		c.Provisioning.PollInterval = DefaultProvisioningConfig.PollInterval
	} else if c.Provisioning.PollInterval < 0 {
		return fmt.Errorf("provisioning.poll_interval must be positive, got %s", c.Provisioning.PollInterval)
	}

	if c.Provisioning.Timeout == 0 {
		c.Provisioning.Timeout = DefaultProvisioningConfig.Timeout
	} else if c.Provisioning.Timeout < c.Provisioning.PollInterval {
		return fmt.Errorf("provisioning.timeout (%s) cannot be shorter than provisioning.poll_interval (%s)", c.Provisioning.Timeout, c.Provisioning.PollInterval)
	}

	if len(c.Provisioning.DefaultRegions) == 0 {
		c.Provisioning.DefaultRegions = DefaultProvisioningConfig.DefaultRegions
	}

	if c.Provisioning.DefaultRetentionDays == 0 {
		c.Provisioning.DefaultRetentionDays = DefaultProvisioningConfig.DefaultRetentionDays
	} else if c.Provisioning.DefaultRetentionDays < 1 || c.Provisioning.DefaultRetentionDays > 90 {
		return fmt.Errorf("provisioning.default_retention_days must be between 1 and 90, got %d", c.Provisioning.DefaultRetentionDays)
	}

	if c.Provisioning.CheckInterval == 0 {
		c.Provisioning.CheckInterval = DefaultProvisioningConfig.CheckInterval
	} else if c.Provisioning.CheckInterval < time.Minute {
		return fmt.Errorf("provisioning.check_interval cannot be less than 1 minute")
	}

	return nil
}

func (c *Config) validateRotationConfig() error {
	if c.Rotation.MaxAttempts == 0 {
		c.Rotation.MaxAttempts = DefaultRotationConfig.MaxAttempts
	} else if c.Rotation.MaxAttempts < 1 {
		return fmt.Errorf("rotation.max_attempts must be at least 1, got %d", c.Rotation.MaxAttempts)
	}

	if c.Rotation.InitialBackoff <= 0 {
		c.Rotation.InitialBackoff = DefaultRotationConfig.InitialBackoff
	}

	if c.Rotation.MaxBackoff <= 0 {
		c.Rotation.MaxBackoff = DefaultRotationConfig.MaxBackoff
	}

	if c.Rotation.MaxBackoff < c.Rotation.InitialBackoff {
		return fmt.Errorf("rotation.max_backoff cannot be less than rotation.initial_backoff")
	}

	if c.Rotation.RenewBefore == 0 {
		c.Rotation.RenewBefore = DefaultRotationConfig.RenewBefore
	} else if c.Rotation.RenewBefore < 0 {
		return fmt.Errorf("rotation.renew_before must be positive, got %s", c.Rotation.RenewBefore)
	}

	if c.Rotation.CheckInterval == 0 {
		c.Rotation.CheckInterval = DefaultRotationConfig.CheckInterval
	} else if c.Rotation.CheckInterval < time.Minute {
		return fmt.Errorf("rotation.check_interval cannot be less than 1 minute")
	}

	return c.validateCAConfig()
}

func (c *Config) validateCAConfig() error {
	ca := &c.Rotation.CA

	if ca.Validity == 0 {
		ca.Validity = DefaultCAConfig.Validity
	} else if ca.Validity < 24*time.Hour {
		return fmt.Errorf("rotation.ca.validity cannot be less than 24h, got %s", ca.Validity)
	}

	if c.Rotation.RenewBefore >= ca.Validity {
		return fmt.Errorf("rotation.renew_before (%s) must be shorter than rotation.ca.validity (%s)", c.Rotation.RenewBefore, ca.Validity)
	}

	if ca.KeyBits == 0 {
		ca.KeyBits = DefaultCAConfig.KeyBits
	} else if ca.KeyBits < 2048 {
		return fmt.Errorf("rotation.ca.key_bits must be at least 2048, got %d", ca.KeyBits)
	}

	if ca.Organization == "" {
		ca.Organization = DefaultCAConfig.Organization
	}

	if ca.CommonNamePrefix == "" {
		ca.CommonNamePrefix = DefaultCAConfig.CommonNamePrefix
	}

	return nil
}

var namespaceNamePattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,37}[a-z0-9])?$`)

func (c *Config) validateNamespacesConfig() error {
	if len(c.Namespaces) == 0 {
		return nil
	}

	if c.API.AccountID == "" {
		return fmt.Errorf("api.account_id is required when namespaces are declared")
	}

	seen := make(map[string]struct{}, len(c.Namespaces))
	for i := range c.Namespaces {
		ns := &c.Namespaces[i]

		if ns.Name == "" {
			return fmt.Errorf("namespaces[%d].name is required", i)
		}

		if !namespaceNamePattern.MatchString(ns.Name) {
			return fmt.Errorf("namespaces[%d].name %q must be 1-39 lowercase letters, digits or dashes", i, ns.Name)
		}

		if _, ok := seen[ns.Name]; ok {
			return fmt.Errorf("namespaces[%d].name %q is declared more than once", i, ns.Name)
		}
		seen[ns.Name] = struct{}{}

		switch ns.AuthMode {
		case "":
			ns.AuthMode = AuthModeAPIKey
		case AuthModeAPIKey, AuthModeMTLS:
		default:
			return fmt.Errorf("namespaces[%d].auth_mode must be %q or %q, got %q", i, AuthModeAPIKey, AuthModeMTLS, ns.AuthMode)
		}

		if len(ns.Regions) == 0 {
			ns.Regions = c.Provisioning.DefaultRegions
		}

		if ns.RetentionDays == 0 {
			ns.RetentionDays = c.Provisioning.DefaultRetentionDays
		} else if ns.RetentionDays < 1 || ns.RetentionDays > 90 {
			return fmt.Errorf("namespaces[%d].retention_days must be between 1 and 90, got %d", i, ns.RetentionDays)
		}
	}

	return nil
}

func (c *Config) validateServerConfig() error {
	if c.Server.Debug != nil && c.Server.Debug.Enabled {
		if c.Server.Debug.Host == "" {
			c.Server.Debug.Host = DefaultDebugConfig.Host
		}
		if c.Server.Debug.Port <= 0 || c.Server.Debug.Port >= 65535 {
			c.Server.Debug.Port = DefaultDebugConfig.Port
		}
	}

	return nil
}

func (c *Config) validateRedisConfig() error {
	if c.Redis == nil {
		return fmt.Errorf("redis configuration is required when distributed mode is enabled")
	}

	if c.Redis.Sentinel != nil {
		if c.Redis.Sentinel.MasterName == "" {
			return fmt.Errorf("sentinel master_name is required")
		}
		if len(c.Redis.Sentinel.SentinelAddresses) == 0 {
			return fmt.Errorf("at least one sentinel address is required")
		}
	} else {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis address is required")
		}

		if _, _, err := net.SplitHostPort(c.Redis.Address); err != nil {
			return fmt.Errorf("invalid redis address format (expected host:port): %w", err)
		}
	}

	const maxRedisDB = 15
	if c.Redis.LeaderIndex < 0 || c.Redis.LeaderIndex > maxRedisDB {
		return fmt.Errorf("redis leader_index must be between 0 and %d, got %d", maxRedisDB, c.Redis.LeaderIndex)
	}

	return nil
}

func (c *Config) validateDistributedConfig() error {
	if c.Distributed == nil || !c.Distributed.Enabled {
		return nil
	}

	if c.Distributed.TTL.Seconds() <= 0 {
		c.Distributed.TTL = DefaultDistributedConfig.TTL
	} else if c.Distributed.TTL > time.Minute {
		return fmt.Errorf("distributed ttl cannot be more than 1 minute")
	}

	return nil
}
