package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

const (
	defaultAPIHost    = "mbaas.api.nifcloud.com"
	defaultAPIVersion = "2013-09-01"
	defaultLogLevel   = "info"
	defaultEnv        = EnvLocal
	defaultDataDir    = ".ncmb"
	defaultTimeout    = 10
)

type Config struct {
	Env            string `mapstructure:"app_env"`
	ApplicationKey string `mapstructure:"ncmb_application_key"`
	ClientKey      string `mapstructure:"ncmb_client_key"`
	APIHost        string `mapstructure:"ncmb_api_host"`
	APIVersion     string `mapstructure:"ncmb_api_version"`
	TimeoutSeconds int    `mapstructure:"ncmb_timeout_seconds"`
	DataDir        string `mapstructure:"ncmb_data_dir"`
	LogLevel       string `mapstructure:"log_level"`
}

// MustLoad reads the client configuration from the environment, with
// an optional .env file, and panics when it is unusable.
func MustLoad() *Config {
	envPath := ".env"
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		envPath = "../.env"
	}
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			fmt.Printf("cannot load .env file: %v\n", err)
		}
	}

	viper.AutomaticEnv()

	viper.SetDefault("APP_ENV", defaultEnv)
	viper.SetDefault("NCMB_API_HOST", defaultAPIHost)
	viper.SetDefault("NCMB_API_VERSION", defaultAPIVersion)
	viper.SetDefault("NCMB_TIMEOUT_SECONDS", defaultTimeout)
	viper.SetDefault("NCMB_DATA_DIR", defaultDataDir)
	viper.SetDefault("LOG_LEVEL", defaultLogLevel)

	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	dataDir := viper.GetString("NCMB_DATA_DIR")
	if dataDir == defaultDataDir {
		dataDir = filepath.Join(homeDir, dataDir)
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		fmt.Printf("cannot create data directory: %v\n", err)
	}

	config := &Config{
		Env:            viper.GetString("APP_ENV"),
		ApplicationKey: viper.GetString("NCMB_APPLICATION_KEY"),
		ClientKey:      viper.GetString("NCMB_CLIENT_KEY"),
		APIHost:        viper.GetString("NCMB_API_HOST"),
		APIVersion:     viper.GetString("NCMB_API_VERSION"),
		TimeoutSeconds: viper.GetInt("NCMB_TIMEOUT_SECONDS"),
		DataDir:        dataDir,
		LogLevel:       viper.GetString("LOG_LEVEL"),
	}

	if err := config.validate(); err != nil {
		panic(fmt.Sprintf("invalid configuration: %v", err))
	}

	return config
}

func (c *Config) validate() error {
	if c.APIHost == "" {
		return fmt.Errorf("ncmb_api_host must not be empty")
	}
	if c.APIVersion == "" {
		return fmt.Errorf("ncmb_api_version must not be empty")
	}
	if c.TimeoutSeconds <= 0 {
		return fmt.Errorf("ncmb_timeout_seconds must be positive")
	}
	return nil
}

// BaseURL is the versioned API root, e.g.
// https://mbaas.api.nifcloud.com/2013-09-01.
func (c *Config) BaseURL() string {
	return "https://" + c.APIHost + "/" + c.APIVersion
}

func (c *Config) IsProd() bool {
	return c.Env == EnvProd
}

func (c *Config) IsDev() bool {
	return c.Env == EnvDev
}

func (c *Config) IsLocal() bool {
	return c.Env == EnvLocal || c.Env == ""
}
