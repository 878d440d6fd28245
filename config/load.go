package config

import (
	"fmt"
	"io"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "snapcache"

// Load reads the config file at path (any format viper knows by extension;
// "" skips the file), overlays SNAPCACHE_* environment variables and
// validates the result.
func Load(path string) (*Config, error) {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}
	return decode(v)
}

// Read is Load for a config held in memory; typ is "yaml", "json", "toml"...
func Read(r io.Reader, typ string) (*Config, error) {
	v := newViper()
	v.SetConfigType(typ)
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	d := Default()
	v.SetDefault("nodes", []string{})
	v.SetDefault("redirects", d.Redirects)
	v.SetDefault("ttl", d.TTL)
	v.SetDefault("password", "")
	v.SetDefault("embedded", false)
	v.SetDefault("compression", d.Compression)
	v.SetDefault("serializer", d.Serializer)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv() // read in environment variables that match
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	// A single env var carries the node list as "a:1,b:2".
	if len(cfg.Nodes) == 1 && strings.Contains(cfg.Nodes[0], ",") {
		cfg.Nodes = strings.Split(cfg.Nodes[0], ",")
	}
	for i, n := range cfg.Nodes {
		cfg.Nodes[i] = strings.TrimSpace(n)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
