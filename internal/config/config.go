package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`

		// tenant -> API key; auth is enforced only when non-empty
		APIKeys map[string]string `yaml:"apiKeys"`

		RateLimit struct {
			Capacity     int `yaml:"capacity"`
			RefillPerSec int `yaml:"refillPerSec"`
		} `yaml:"rateLimit"`
	} `yaml:"server"`

	Database struct {
		Driver   string `yaml:"driver"` // mysql | postgres
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
	} `yaml:"database"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	Scanner struct {
		// extra install locations tried after PATH, e.g. a bundled
		// virtualenv bin directory
		FallbackBinDirs []string `yaml:"fallbackBinDirs"`

		CloneTimeoutMinutes int `yaml:"cloneTimeoutMinutes"`
		SASTTimeoutMinutes  int `yaml:"sastTimeoutMinutes"`
		SCATimeoutMinutes   int `yaml:"scaTimeoutMinutes"`
		DASTTimeoutMinutes  int `yaml:"dastTimeoutMinutes"`
	} `yaml:"scanner"`

	AI struct {
		APIKey string `yaml:"apiKey"`
		Model  string `yaml:"model"`
	} `yaml:"ai"`
}

// Load baca file config.yaml
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	return &cfg, nil
}

// applyEnv lets secrets come from the environment instead of the file.
func (c *Config) applyEnv() {
	if v := os.Getenv("REPOGUARD_DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("REPOGUARD_MINIO_SECRET_KEY"); v != "" {
		c.Minio.SecretKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.AI.APIKey = v
	}
}

// MySQLDSN builds the DSN for the mysql driver.
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// PostgresDSN builds the DSN for the pq driver.
func (c *Config) PostgresDSN() string {
	ssl := c.Database.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		ssl,
	)
}

// CloneTimeout with the 15 minute default; large repositories are expected.
func (c *Config) CloneTimeout() time.Duration {
	return minutesOr(c.Scanner.CloneTimeoutMinutes, 15*time.Minute)
}

func (c *Config) SASTTimeout() time.Duration {
	return minutesOr(c.Scanner.SASTTimeoutMinutes, 10*time.Minute)
}

func (c *Config) SCATimeout() time.Duration {
	return minutesOr(c.Scanner.SCATimeoutMinutes, 5*time.Minute)
}

func (c *Config) DASTTimeout() time.Duration {
	return minutesOr(c.Scanner.DASTTimeoutMinutes, 5*time.Minute)
}

func minutesOr(m int, def time.Duration) time.Duration {
	if m <= 0 {
		return def
	}
	return time.Duration(m) * time.Minute
}
