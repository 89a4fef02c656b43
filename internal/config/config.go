package config

import (
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Evolution EvolutionConfig
	Meta      MetaConfig
	Asaas     AsaasConfig
	Nuvemshop NuvemshopConfig
	Mimir     MimirConfig
	Scheduler SchedulerConfig
	Recovery  RecoveryConfig
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	URL            string
	MaxConnections int
	MaxIdleConns   int
	MigrationsPath string
}

type RedisConfig struct {
	URL string
}

type JWTConfig struct {
	Secret string
}

type EvolutionConfig struct {
	URL            string
	APIKey         string
	RequestsPerSec float64
	Burst          int
}

type MetaConfig struct {
	GraphURL    string
	APIVersion  string
	AccessToken string
	// Token usado pela Meta na verificação do endpoint de webhook
	VerifyToken string
}

type AsaasConfig struct {
	URL          string
	APIKey       string
	WebhookToken string
}

type NuvemshopConfig struct {
	URL          string
	ClientID     string
	ClientSecret string
}

type MimirConfig struct {
	URL           string
	TenantHeader  string
	BatchSize     int
	FlushInterval time.Duration
	AuthToken     string
}

type SchedulerConfig struct {
	WorkerCount   int
	PollInterval  time.Duration
	HealthRefresh time.Duration
}

type RecoveryConfig struct {
	MaxAttempts   int
	AttemptDelays []time.Duration
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.SetEnvPrefix("CARTBACK")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("database.maxconnections", 25)
	viper.SetDefault("database.maxidleconns", 5)
	viper.SetDefault("database.migrationspath", "file://migrations")
	viper.SetDefault("evolution.requestspersec", 5)
	viper.SetDefault("evolution.burst", 10)
	viper.SetDefault("meta.graphurl", "https://graph.facebook.com")
	viper.SetDefault("meta.apiversion", "v19.0")
	viper.SetDefault("asaas.url", "https://api.asaas.com/v3")
	viper.SetDefault("nuvemshop.url", "https://api.nuvemshop.com.br/v1")
	viper.SetDefault("mimir.tenantheader", "X-Scope-OrgID")
	viper.SetDefault("mimir.batchsize", 1000)
	viper.SetDefault("mimir.flushinterval", "10s")
	viper.SetDefault("scheduler.workercount", 10)
	viper.SetDefault("scheduler.pollinterval", "1m")
	viper.SetDefault("scheduler.healthrefresh", "5m")
	viper.SetDefault("recovery.maxattempts", 3)

	var cfg Config
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Override with environment variables
	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.Database.URL = url
	}
	if url := os.Getenv("REDIS_URL"); url != "" {
		cfg.Redis.URL = url
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.JWT.Secret = secret
	}
	if url := os.Getenv("EVOLUTION_API_URL"); url != "" {
		cfg.Evolution.URL = url
	}
	if key := os.Getenv("EVOLUTION_API_KEY"); key != "" {
		cfg.Evolution.APIKey = key
	}
	if token := os.Getenv("META_ACCESS_TOKEN"); token != "" {
		cfg.Meta.AccessToken = token
	}
	if token := os.Getenv("META_VERIFY_TOKEN"); token != "" {
		cfg.Meta.VerifyToken = token
	}
	if key := os.Getenv("ASAAS_API_KEY"); key != "" {
		cfg.Asaas.APIKey = key
	}
	if url := os.Getenv("MIMIR_URL"); url != "" {
		cfg.Mimir.URL = url
	}
	if token := os.Getenv("MIMIR_AUTH_TOKEN"); token != "" {
		cfg.Mimir.AuthToken = token
	}

	// Delays padrão entre tentativas de recuperação (1h, 6h, 24h)
	if len(cfg.Recovery.AttemptDelays) == 0 {
		cfg.Recovery.AttemptDelays = []time.Duration{
			1 * time.Hour,
			6 * time.Hour,
			24 * time.Hour,
		}
	}

	return &cfg, nil
}
