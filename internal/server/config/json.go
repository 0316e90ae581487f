package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/melcdl/melcdl-backend/internal/flagx"
	"github.com/melcdl/melcdl-backend/internal/timex"
)

// JsonConfig is the intermediate DTO for reading JSON configuration files.
// Duration fields use timex.Duration so the file may say "5s" or give raw
// nanoseconds. Only fields present in the file overwrite the defaults.
type JsonConfig struct {
	Addr                         string         `json:"addr"`
	DatabaseDSN                  string         `json:"database_dsn"`
	SecretKey                    string         `json:"secret_key"`
	CryptoSecret                 string         `json:"crypto_secret"`
	CryptoSalt                   string         `json:"crypto_salt"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	S3AccessKey                  string         `json:"s3_access_key"`
	S3SecretKey                  string         `json:"s3_secret_key"`
	S3Bucket                     string         `json:"s3_bucket"`
	S3Region                     string         `json:"s3_region"`
	S3Endpoint                   string         `json:"s3_endpoint"`
	S3PublicURL                  string         `json:"s3_public_url"`
	FileDir                      string         `json:"file_dir"`
	ModelDir                     string         `json:"model_dir"`
	LocalModelDir                string         `json:"local_model_dir"`
	KafkaBrokers                 []string       `json:"kafka_brokers"`
	KafkaGroupID                 string         `json:"kafka_group_id"`
	KafkaTopic                   string         `json:"kafka_topic"`
	KafkaCommitInterval          timex.Duration `json:"kafka_commit_interval"`
	ModelBatchSize               int            `json:"model_batch_size"`
}

// parseJson loads configuration values from the JSON file named by the
// -c/-config flags, if any. Unreadable or invalid files panic: a requested
// config file that cannot be applied is a startup error.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.Addr, c.Addr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.CryptoSecret, c.CryptoSecret)
	setString(&config.CryptoSalt, c.CryptoSalt)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setDuration(&config.RefreshTokenValidityDuration, c.RefreshTokenValidityDuration)
	setString(&config.S3AccessKey, c.S3AccessKey)
	setString(&config.S3SecretKey, c.S3SecretKey)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3Endpoint, c.S3Endpoint)
	setString(&config.S3PublicURL, c.S3PublicURL)
	setString(&config.FileDir, c.FileDir)
	setString(&config.ModelDir, c.ModelDir)
	setString(&config.LocalModelDir, c.LocalModelDir)
	if len(c.KafkaBrokers) > 0 {
		config.KafkaBrokers = c.KafkaBrokers
	}
	setString(&config.KafkaGroupID, c.KafkaGroupID)
	setString(&config.KafkaTopic, c.KafkaTopic)
	setDuration(&config.KafkaCommitInterval, c.KafkaCommitInterval)
	if c.ModelBatchSize > 0 {
		config.ModelBatchSize = c.ModelBatchSize
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = time.Duration(v.Duration)
	}
}
