package config

import (
	"time"
)

type Config struct {
	API          APIConfig          `yaml:"api"`
	Log          LogConfig          `yaml:"log"`
	Provisioning ProvisioningConfig `yaml:"provisioning"`
	Rotation     RotationConfig     `yaml:"rotation"`
	Namespaces   []NamespaceConfig  `yaml:"namespaces"`
	Server       ServerConfig       `yaml:"server"`
	Redis        *RedisConfig       `yaml:"redis"`
	Distributed  *DistributedConfig `yaml:"distributed"`
}

type APIConfig struct {
	URL         string        `yaml:"url"`
	Key         string        `yaml:"key"`
	Version     string        `yaml:"version"`
	AccountID   string        `yaml:"account_id"`
	Timeout     time.Duration `yaml:"timeout"`
	ReadRetries int           `yaml:"read_retries"`
}

var DefaultAPIConfig = APIConfig{
	URL:         "https://saas-api.tmprl.cloud",
	Version:     "v0.4.0",
	Timeout:     30 * time.Second,
	ReadRetries: 4,
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

var DefaultLogConfig = LogConfig{
	Level:  "info",
	Format: "text",
}

type ProvisioningConfig struct {
	PollInterval         time.Duration `yaml:"poll_interval"`
	Timeout              time.Duration `yaml:"timeout"`
	DefaultRegions       []string      `yaml:"default_regions"`
	DefaultRetentionDays int           `yaml:"default_retention_days"`
	CheckInterval        time.Duration `yaml:"check_interval"`
}

var DefaultProvisioningConfig = ProvisioningConfig{
	PollInterval:         5 * time.Second,
	Timeout:              10 * time.Minute,
	DefaultRegions:       []string{"aws-us-east-1"},
	DefaultRetentionDays: 90,
	CheckInterval:        15 * time.Minute,
}

type RotationConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
	RenewBefore    time.Duration `yaml:"renew_before"`
	CheckInterval  time.Duration `yaml:"check_interval"`
	CA             CAConfig      `yaml:"ca"`
}

var DefaultRotationConfig = RotationConfig{
	MaxAttempts:    5,
	InitialBackoff: 200 * time.Millisecond,
	MaxBackoff:     5 * time.Second,
	RenewBefore:    30 * 24 * time.Hour,
	CheckInterval:  time.Hour,
}

type CAConfig struct {
	Validity         time.Duration `yaml:"validity"`
	KeyBits          int           `yaml:"key_bits"`
	Organization     string        `yaml:"organization"`
	CommonNamePrefix string        `yaml:"common_name_prefix"`
}

var DefaultCAConfig = CAConfig{
	Validity:         365 * 24 * time.Hour,
	KeyBits:          2048,
	Organization:     "My Organization",
	CommonNamePrefix: "cloudops-ca",
}

const (
	AuthModeAPIKey = "api_key"
	AuthModeMTLS   = "mtls"
)

// NamespaceConfig declares a namespace the serve command keeps provisioned.
type NamespaceConfig struct {
	Name          string   `yaml:"name"`
	AuthMode      string   `yaml:"auth_mode"`
	Regions       []string `yaml:"regions"`
	RetentionDays int      `yaml:"retention_days"`
	AutoRotate    *bool    `yaml:"auto_rotate"`
}

func (n NamespaceConfig) RotationEnabled() bool {
	return n.AuthMode == AuthModeMTLS && (n.AutoRotate == nil || *n.AutoRotate)
}

type ServerConfig struct {
	Debug *ServerDebugConfig `yaml:"debug"`
}

type ServerDebugConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

var DefaultDebugConfig = ServerDebugConfig{
	Enabled: false,
	Host:    "localhost",
	Port:    5123,
}

type RedisConfig struct {
	Address     string               `yaml:"address"`
	Username    string               `yaml:"username"`
	Password    string               `yaml:"password"`
	Sentinel    *RedisSentinelConfig `yaml:"sentinel"`
	LeaderIndex int                  `yaml:"leader_index"`
}

type RedisSentinelConfig struct {
	MasterName        string   `yaml:"master_name"`
	SentinelAddresses []string `yaml:"addresses"`
	SentinelPassword  string   `yaml:"password"`
	SentinelUsername  string   `yaml:"username"`
}

type DistributedConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
}

var DefaultDistributedConfig = DistributedConfig{
	Enabled: false,
	TTL:     30 * time.Second,
}
