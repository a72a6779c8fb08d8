package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DefaultAPIURL     = "http://127.0.0.1:8000"
	DefaultListenAddr = "127.0.0.1:8787"

	ProviderCognito = "cognito"
	ProviderMemory  = "memory"
)

// IdentityConfig selects and configures the identity provider
type IdentityConfig struct {
	Provider     string `json:"provider"`
	Region       string `json:"region,omitempty"`
	UserPoolID   string `json:"userPoolId,omitempty"`
	ClientID     string `json:"clientId,omitempty"`
	ClientSecret string `json:"clientSecret,omitempty"`
}

// Config holds application configuration
type Config struct {
	APIURL       string         `json:"apiUrl"`
	ListenAddr   string         `json:"listenAddr"`
	LogLevel     string         `json:"logLevel"`
	LogFormat    string         `json:"logFormat"`
	LogFile      string         `json:"logFile,omitempty"`
	Identity     IdentityConfig `json:"identity"`
	WriteRetries int            `json:"writeRetries"`
	Metrics      bool           `json:"metrics"`

	path string
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		APIURL:       DefaultAPIURL,
		ListenAddr:   DefaultListenAddr,
		LogLevel:     "info",
		LogFormat:    "console",
		Identity:     IdentityConfig{Provider: ProviderMemory},
		WriteRetries: 3,
		Metrics:      true,
	}
}

// GetConfigFilePath returns the path where the config file should be stored
func GetConfigFilePath() string {
	currentUser, err := user.Current()
	if err != nil {
		return "./config.json"
	}

	return filepath.Join(currentUser.HomeDir, ".config", "sharednotes", "config.json")
}

// Load reads the config file at path (the default path when empty), loads
// .env files and overlays environment variables. A missing file means defaults.
func Load(path string, envFiles ...string) (*Config, error) {
	if path == "" {
		path = GetConfigFilePath()
	}

	config := Default()
	config.path = path

	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	if err := loadEnvFiles(envFiles); err != nil {
		return nil, err
	}
	if err := config.applyEnv(); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// loadEnvFiles never overrides variables already set in the environment.
// With no names it tries ./.env and ignores its absence.
func loadEnvFiles(files []string) error {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		files = []string{".env"}
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.APIURL = getEnv("SHAREDNOTES_API_URL", c.APIURL)
	c.ListenAddr = getEnv("SHAREDNOTES_LISTEN_ADDR", c.ListenAddr)
	c.LogLevel = getEnv("SHAREDNOTES_LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("SHAREDNOTES_LOG_FORMAT", c.LogFormat)
	c.LogFile = getEnv("SHAREDNOTES_LOG_FILE", c.LogFile)
	c.Identity.Provider = getEnv("SHAREDNOTES_IDENTITY_PROVIDER", c.Identity.Provider)
	c.Identity.Region = getEnv("COGNITO_REGION", c.Identity.Region)
	c.Identity.UserPoolID = getEnv("COGNITO_USER_POOL_ID", c.Identity.UserPoolID)
	c.Identity.ClientID = getEnv("COGNITO_CLIENT_ID", c.Identity.ClientID)
	c.Identity.ClientSecret = getEnv("COGNITO_CLIENT_SECRET", c.Identity.ClientSecret)

	if v, ok := os.LookupEnv("SHAREDNOTES_WRITE_RETRIES"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SHAREDNOTES_WRITE_RETRIES: %w", err)
		}
		c.WriteRetries = n
	}
	if v, ok := os.LookupEnv("SHAREDNOTES_METRICS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SHAREDNOTES_METRICS: %w", err)
		}
		c.Metrics = b
	}
	return nil
}

// Validate checks the values that would make the client unusable
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid api url %q", c.APIURL)
	}
	c.APIURL = strings.TrimRight(c.APIURL, "/")

	switch c.Identity.Provider {
	case ProviderMemory:
	case ProviderCognito:
		if c.Identity.Region == "" || c.Identity.ClientID == "" {
			return fmt.Errorf("cognito provider needs a region and a client id")
		}
	default:
		return fmt.Errorf("unknown identity provider %q", c.Identity.Provider)
	}

	if c.WriteRetries < 1 {
		return fmt.Errorf("writeRetries must be at least 1")
	}
	return nil
}

// Path returns the file the config was loaded from
func (c *Config) Path() string {
	return c.path
}

// Save saves the configuration to file
func (c *Config) Save() error {
	configFile := c.path
	if configFile == "" {
		configFile = GetConfigFilePath()
	}

	if err := os.MkdirAll(filepath.Dir(configFile), 0755); err != nil {
		return err
	}

	saved := *c
	saved.Identity.ClientSecret = ""
	data, err := json.MarshalIndent(saved, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(configFile, data, 0600)
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
