package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/rushteam/ncfrec/artifact"
	"github.com/rushteam/ncfrec/catalog"
	"github.com/rushteam/ncfrec/model"
	"github.com/rushteam/ncfrec/pkg/logging"
	"github.com/rushteam/ncfrec/rank"
	"github.com/rushteam/ncfrec/store"
)

const (
	// EnvPrefix 是环境变量前缀，例如 NCFREC_ENGINE_MAX_TOP_N -> engine.max_top_n
	EnvPrefix = "NCFREC_"

	// ConfigPathEnvVar 指定配置文件路径
	ConfigPathEnvVar = "NCFREC_CONFIG"
)

// DefaultConfigPaths 是未指定路径时依次查找的配置文件。
var DefaultConfigPaths = []string{
	"ncfrec.yaml",
	"config/ncfrec.yaml",
	"/etc/ncfrec/config.yaml",
}

// Artifact 存储后端
const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendBadger = "badger"
)

// 目录字段来源
const (
	MetadataRequest = "request"
	MetadataFeast   = "feast"
)

// Config 是 ncfrec 的应用配置。
//
// 加载顺序（后者覆盖前者）：默认值 -> YAML 文件 -> NCFREC_ 环境变量。
type Config struct {
	Log      logging.Config       `koanf:"log"`
	Model    ModelConfig          `koanf:"model"`
	Artifact ArtifactConfig       `koanf:"artifact"`
	Data     DataConfig           `koanf:"data"`
	Redis    store.RedisOptions   `koanf:"redis"`
	Badger   store.BadgerOptions  `koanf:"badger"`
	Feast    catalog.FeastOptions `koanf:"feast"`
	Engine   EngineConfig         `koanf:"engine"`
	Server   ServerConfig         `koanf:"server"`
	Train    model.TrainerConfig  `koanf:"train"`
}

// ModelConfig 是新建 NCF 模型的结构参数，加载已有 artifact 时不使用。
type ModelConfig struct {
	EmbeddingDim int   `koanf:"embedding_dim" validate:"min=1"`
	Layers       []int `koanf:"layers" validate:"min=1,dive,min=1"`
	Seed         int64 `koanf:"seed"`
}

// ArtifactConfig 决定模型 artifact 存放在哪里。
type ArtifactConfig struct {
	Backend string `koanf:"backend" validate:"oneof=file redis badger"`

	// Path: file 后端的目录
	Path string `koanf:"path"`

	// KeyPrefix: redis / badger 后端的 key 前缀
	KeyPrefix string `koanf:"key_prefix"`
}

// 目录与购买记录的存放方式
const (
	DataCSV   = "csv"
	DataStore = "store"
)

// DataConfig 是目录与交互数据来源。
type DataConfig struct {
	// Backend: csv 每次启动读取 CSV；store 使用与 artifact 相同的 KV 存储（train 时导入）
	Backend string `koanf:"backend" validate:"oneof=csv store"`

	// Products 是 product_id,product_name,category,price 格式的 CSV
	Products string `koanf:"products"`

	// Interactions 是 user_id,product_id,...,rating 格式的 CSV，用于训练与已购排除
	Interactions string `koanf:"interactions"`

	// Metadata: request 使用候选行字段，feast 从 Feast 在线存储读取
	Metadata string `koanf:"metadata" validate:"oneof=request feast"`
}

// EngineConfig 是排序引擎参数。
type EngineConfig struct {
	DefaultTopN int     `koanf:"default_top_n" validate:"min=1"`
	MaxTopN     int     `koanf:"max_top_n" validate:"min=1"`
	Concurrency int     `koanf:"concurrency" validate:"min=0"`
	MinRating   float64 `koanf:"min_rating"`
	MaxRating   float64 `koanf:"max_rating"`

	// Pipeline 是可选的 Pipeline YAML/JSON 文件，为空时使用默认链路
	Pipeline string `koanf:"pipeline"`
}

// ServerConfig 是 HTTP 服务参数，超时只在这一层生效。
type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"min=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"min=0"`
	RequestTimeout  time.Duration `koanf:"request_timeout" validate:"min=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"min=0"`
}

// Defaults 返回默认配置。
func Defaults() *Config {
	return &Config{
		Log: logging.Config{Level: "info", Format: "json"},
		Model: ModelConfig{
			EmbeddingDim: model.DefaultEmbeddingDim,
			Layers:       append([]int(nil), model.DefaultTowerLayers...),
			Seed:         42,
		},
		Artifact: ArtifactConfig{
			Backend:   BackendFile,
			Path:      "model",
			KeyPrefix: artifact.DefaultKeyPrefix,
		},
		Data: DataConfig{
			Backend:      DataCSV,
			Products:     "products.csv",
			Interactions: "interactions.csv",
			Metadata:     MetadataRequest,
		},
		Redis: store.RedisOptions{Addr: "localhost:6379"},
		Feast: catalog.FeastOptions{
			Host:        "localhost",
			Port:        catalog.DefaultFeastPort,
			FeatureView: catalog.DefaultFeatureView,
			EntityKey:   catalog.DefaultEntityKey,
		},
		Engine: EngineConfig{
			DefaultTopN: 5,
			MaxTopN:     100,
			Concurrency: 1,
			MinRating:   rank.DefaultMinRating,
			MaxRating:   rank.DefaultMaxRating,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    10 * time.Second,
			RequestTimeout:  3 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Train: model.DefaultTrainerConfig(),
	}
}

// Load 加载配置。path 为空时依次查找 NCFREC_CONFIG 与 DefaultConfigPaths，
// 都不存在则只使用默认值和环境变量。
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

var validate = validator.New()

// Validate 校验字段取值与字段之间的约束。
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Engine.MinRating >= c.Engine.MaxRating {
		return fmt.Errorf("engine: min_rating (%v) must be less than max_rating (%v)", c.Engine.MinRating, c.Engine.MaxRating)
	}
	if c.Engine.DefaultTopN > c.Engine.MaxTopN {
		return fmt.Errorf("engine: default_top_n (%d) exceeds max_top_n (%d)", c.Engine.DefaultTopN, c.Engine.MaxTopN)
	}
	if last := c.Model.Layers[len(c.Model.Layers)-1]; last != 1 {
		return fmt.Errorf("model: last layer must have 1 unit, got %d", last)
	}
	switch c.Artifact.Backend {
	case BackendFile:
		if c.Artifact.Path == "" {
			return errors.New("artifact: path is required for the file backend")
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			return errors.New("redis: addr is required for the redis artifact backend")
		}
	}
	if c.Data.Backend == DataStore && c.Artifact.Backend == BackendFile {
		return errors.New("data: the store backend needs a redis or badger artifact backend")
	}
	if c.Data.Metadata == MetadataFeast && c.Feast.Host == "" {
		return errors.New("feast: host is required when data.metadata is feast")
	}
	return nil
}

// findConfigFile 返回第一个存在的配置文件，找不到时返回空串。
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// 顶层配置段，环境变量按第一个下划线切分为 段.字段
var envSections = map[string]bool{
	"log": true, "model": true, "artifact": true, "data": true, "redis": true,
	"badger": true, "feast": true, "engine": true, "server": true, "train": true,
}

// envTransformFunc 把环境变量名转换为 koanf 路径：
//
//   - NCFREC_ENGINE_MAX_TOP_N -> engine.max_top_n
//   - NCFREC_REDIS_ADDR -> redis.addr
//   - REDIS_ADDR -> redis.addr
//
// 其余变量返回空串被忽略。
func envTransformFunc(key string) string {
	if key == "REDIS_ADDR" {
		return "redis.addr"
	}
	if !strings.HasPrefix(key, EnvPrefix) || key == ConfigPathEnvVar {
		return ""
	}
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	section, field, ok := strings.Cut(key, "_")
	if !ok || field == "" || !envSections[section] {
		return ""
	}
	return section + "." + field
}
