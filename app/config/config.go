// Package config loads process settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"dblog/app/models"
	"dblog/app/wallet"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Env      string `env:"DBLOG_ENV" env-default:"local" validate:"oneof=local development production"`
	BlogName string `env:"DBLOG_BLOG_NAME" env-default:"My dBlog" validate:"required,max=256"`

	Node    NodeConfig
	Storage StorageConfig
	Client  ClientConfig
	Index   IndexConfig
}

type NodeConfig struct {
	DBPath        string        `env:"DBLOG_DB_PATH" env-default:"data/badger"`
	ListenAddr    string        `env:"DBLOG_LISTEN_ADDR" env-default:":8080" validate:"required,hostname_port"`
	ChainID       uint64        `env:"DBLOG_CHAIN_ID"`
	BlockInterval time.Duration `env:"DBLOG_BLOCK_INTERVAL" env-default:"1s" validate:"gt=0"`
	MaxBlockTxs   int           `env:"DBLOG_MAX_BLOCK_TXS" env-default:"100" validate:"gt=0"`
	MempoolSize   int           `env:"DBLOG_MEMPOOL_SIZE" env-default:"1024" validate:"gt=0"`
}

type StorageConfig struct {
	URL             string        `env:"DBLOG_STORAGE_URL" env-default:"badger://" validate:"required"`
	RedisAddr       string        `env:"DBLOG_REDIS_ADDR"`
	CacheTTL        time.Duration `env:"DBLOG_CACHE_TTL" env-default:"24h"`
	AccessKeyID     string        `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string        `env:"AWS_SECRET_ACCESS_KEY"`
}

type ClientConfig struct {
	RPCURL         string        `env:"DBLOG_RPC_URL" env-default:"http://localhost:8080" validate:"required,url"`
	KeyFile        string        `env:"DBLOG_KEY_FILE" env-default:"data/keys/wallet.json"`
	ConfirmTimeout time.Duration `env:"DBLOG_CONFIRM_TIMEOUT" env-default:"2m" validate:"gt=0"`
	GatewayURL     string        `env:"DBLOG_GATEWAY_URL" validate:"omitempty,url"`
	ValidateBodies bool          `env:"DBLOG_VALIDATE_BODIES" env-default:"true"`
}

type IndexConfig struct {
	DatabaseURL string        `env:"DBLOG_DATABASE_URL"`
	Interval    time.Duration `env:"DBLOG_INDEX_INTERVAL" env-default:"2s" validate:"gt=0"`
	BatchSize   int           `env:"DBLOG_INDEX_BATCH_SIZE" env-default:"100" validate:"gt=0"`
}

// Load reads an optional .env file, then the environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := models.Validator().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ChainID returns the configured chain id, or the one the profile implies.
func (c *Config) ChainID() uint64 {
	if c.Node.ChainID != 0 {
		return c.Node.ChainID
	}
	switch c.Env {
	case "production":
		return wallet.PolygonChainID
	case "development":
		return wallet.MumbaiChainID
	default:
		return wallet.LocalChainID
	}
}

// Network returns the wallet network the client should use. The RPC URL
// always comes from configuration.
func (c *Config) Network() wallet.Network {
	id := c.ChainID()
	n := wallet.Network{ChainID: id, Name: fmt.Sprintf("chain %d", id)}
	for _, known := range wallet.DefaultNetworks() {
		if known.ChainID == id {
			n = known
			break
		}
	}
	n.RPCURL = c.Client.RPCURL
	return n
}
