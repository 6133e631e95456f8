package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// AppFs is the filesystem configuration and env files are read from.
var AppFs = afero.NewOsFs()

// FileName is the base name of the config file, without extension.
const FileName = ".expreql"

// Config holds the application configuration
type Config struct {
	SchemaPath string `mapstructure:"schema_path"`
	DSN        string `mapstructure:"dsn"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Database   string `mapstructure:"database"`
	User       string `mapstructure:"user"`
	Password   string `mapstructure:"password"`
	Charset    string `mapstructure:"charset"`
	Debug      bool   `mapstructure:"debug"`
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetFs(AppFs)
	v.SetConfigName(FileName)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("EXPREQL")
	v.AutomaticEnv()

	v.SetDefault("schema_path", "entities.yaml")
	v.SetDefault("dsn", "")
	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("port", 3306)
	v.SetDefault("database", "")
	v.SetDefault("user", "")
	v.SetDefault("password", "")
	v.SetDefault("charset", "utf8mb4")
	v.SetDefault("debug", false)
	return v
}

// LoadConfig loads configuration from various sources. Precedence from low to
// high: defaults, config file, .env, .env.local, process environment.
func LoadConfig() (*Config, error) {
	home, err := homedir.Dir()
	if err != nil {
		return nil, err
	}

	v := newViper()
	v.AddConfigPath(".")
	v.AddConfigPath(home)
	v.AddConfigPath(filepath.Join(home, ".config", "expreql"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := loadEnvFile(".env", false); err != nil {
		return nil, err
	}
	if err := loadEnvFile(".env.local", true); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// loadEnvFile exports the variables of name when it exists. Without overload,
// variables already set to a non-empty value win.
func loadEnvFile(name string, overload bool) error {
	f, err := AppFs.Open(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer f.Close()

	vars, err := godotenv.Parse(f)
	if err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	for k, val := range vars {
		if cur := os.Getenv(k); cur != "" && !overload {
			continue
		}
		if err := os.Setenv(k, val); err != nil {
			return err
		}
	}
	return nil
}

// MySQL returns the driver configuration. An explicit DSN wins over the
// individual connection keys.
func (c *Config) MySQL() (*mysql.Config, error) {
	if c.DSN != "" {
		cfg, err := mysql.ParseDSN(c.DSN)
		if err != nil {
			return nil, fmt.Errorf("parse dsn: %w", err)
		}
		return cfg, nil
	}
	if c.Database == "" {
		return nil, errors.New("no dsn and no database configured")
	}

	base := "/"
	if c.Charset != "" {
		base += "?charset=" + url.QueryEscape(c.Charset)
	}
	cfg, err := mysql.ParseDSN(base)
	if err != nil {
		return nil, fmt.Errorf("charset %q: %w", c.Charset, err)
	}
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	cfg.DBName = c.Database
	return cfg, nil
}

// FormatDSN renders the connection settings as a driver DSN
func (c *Config) FormatDSN() (string, error) {
	cfg, err := c.MySQL()
	if err != nil {
		return "", err
	}
	return cfg.FormatDSN(), nil
}

// SaveConfig writes cfg to path, or to the user config directory when path
// is empty, and returns the file written. The password is never persisted.
func SaveConfig(cfg *Config, path string) (string, error) {
	v := viper.New()
	v.SetFs(AppFs)
	v.Set("schema_path", cfg.SchemaPath)
	v.Set("dsn", cfg.DSN)
	v.Set("host", cfg.Host)
	v.Set("port", cfg.Port)
	v.Set("database", cfg.Database)
	v.Set("user", cfg.User)
	v.Set("charset", cfg.Charset)
	v.Set("debug", cfg.Debug)

	if path == "" {
		home, err := homedir.Dir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, ".config", "expreql", FileName+".yaml")
	}
	if err := AppFs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := v.WriteConfigAs(path); err != nil {
		return "", err
	}
	return path, nil
}
