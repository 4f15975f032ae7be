package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileConfig is the optional YAML configuration file. Secrets are only read from the environment.
type FileConfig struct {
	Port                    string   `yaml:"port"`
	BotPort                 string   `yaml:"botPort"`
	Env                     string   `yaml:"env"`
	LogLevel                string   `yaml:"logLevel"`
	CORSAllowOrigins        []string `yaml:"corsAllowOrigins"`
	DatabaseURL             string   `yaml:"databaseURL"`
	ObjectStore             string   `yaml:"objectStore"`
	AssetsDir               string   `yaml:"assetsDir"`
	AWSRegion               string   `yaml:"awsRegion"`
	S3Bucket                string   `yaml:"s3Bucket"`
	S3Prefix                string   `yaml:"s3Prefix"`
	MinioEndpoint           string   `yaml:"minioEndpoint"`
	MinioBucket             string   `yaml:"minioBucket"`
	MinioUseSSL             bool     `yaml:"minioUseSSL"`
	StateStore              string   `yaml:"stateStore"`
	StateTTL                string   `yaml:"stateTTL"`
	RedisAddr               string   `yaml:"redisAddr"`
	Queue                   string   `yaml:"queue"`
	SQSQueueURL             string   `yaml:"sqsQueueURL"`
	QueueStream             string   `yaml:"queueStream"`
	ExcerptLength           int      `yaml:"excerptLength"`
	MaxStepAttempts         int      `yaml:"maxStepAttempts"`
	EventRegistrationPolicy string   `yaml:"eventRegistrationPolicy"`
	AutoMigrate             *bool    `yaml:"autoMigrate"`
}

// loadFile parses path; an empty path yields a zero FileConfig.
func loadFile(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
