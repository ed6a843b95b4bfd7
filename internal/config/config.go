package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App   AppSettings `mapstructure:"app"`
	Store StoreConfig `mapstructure:"store"`
	Seed  SeedConfig  `mapstructure:"seed"`
}

type AppSettings struct {
	Environment string `mapstructure:"environment"`
}

type StoreConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

// SeedConfig controls first-run provisioning. The admin password is hashed
// before it ever reaches the store.
type SeedConfig struct {
	AdminUsername string `mapstructure:"admin_username"`
	AdminPassword string `mapstructure:"admin_password"`
	AdminName     string `mapstructure:"admin_name"`
	Demo          bool   `mapstructure:"demo"`
}

// Load reads the YAML config at path. Every key can be overridden through
// the environment, e.g. JURYPAD_STORE_DATA_DIR or JURYPAD_SEED_ADMIN_PASSWORD.
func Load(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("JURYPAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("app.environment", "development")
	v.SetDefault("store.data_dir", "./data")
	v.SetDefault("seed.admin_username", "admin")
	v.SetDefault("seed.admin_name", "Administrator")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("v.ReadInConfig -> %w", err)
	}

	var conf AppConfig
	if err := v.Unmarshal(&conf); err != nil {
		return nil, fmt.Errorf("v.Unmarshal -> %w", err)
	}

	return &conf, nil
}
