package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/dmitrijs2005/filekeeper/internal/flagx"
	"github.com/dmitrijs2005/filekeeper/internal/timex"
)

// ErrConfigExists is returned by WriteDefaults when the target file exists
// and overwriting was not requested.
var ErrConfigExists = errors.New("config file already exists")

// JsonConfig mirrors Config for JSON files. Durations use timex.Duration,
// which accepts strings such as "90m" as well as integer nanoseconds.
type JsonConfig struct {
	EndpointAddrHTTP    string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC    string         `json:"endpoint_addr_grpc"`
	EndpointAddrMetrics string         `json:"endpoint_addr_metrics"`
	DatabaseDSN         string         `json:"database_dsn"`
	SecretKey           string         `json:"secret_key"`
	LogLevel            string         `json:"log_level"`
	StorageDriver       string         `json:"storage_driver"`
	StagingPath         string         `json:"staging_path"`
	ResidentPath        string         `json:"resident_path"`
	MaxFileSize         int64          `json:"max_file_size"`
	SweepPeriod         timex.Duration `json:"sweep_period"`
	StagingExpiration   timex.Duration `json:"staging_expiration"`
	SweepBatchLimit     int            `json:"sweep_batch_limit"`
	ReclaimWorkers      int            `json:"reclaim_workers"`
	ReclaimQueueSize    int            `json:"reclaim_queue_size"`
	S3RootUser          string         `json:"s3_root_user"`
	S3RootPassword      string         `json:"s3_root_password"`
	S3Bucket            string         `json:"s3_bucket"`
	S3Region            string         `json:"s3_region"`
	S3BaseEndpoint      string         `json:"s3_base_endpoint"`
}

func toJson(c *Config) *JsonConfig {
	return &JsonConfig{
		EndpointAddrHTTP:    c.EndpointAddrHTTP,
		EndpointAddrGRPC:    c.EndpointAddrGRPC,
		EndpointAddrMetrics: c.EndpointAddrMetrics,
		DatabaseDSN:         c.DatabaseDSN,
		SecretKey:           c.SecretKey,
		LogLevel:            c.LogLevel,
		StorageDriver:       c.StorageDriver,
		StagingPath:         c.StagingPath,
		ResidentPath:        c.ResidentPath,
		MaxFileSize:         c.MaxFileSize,
		SweepPeriod:         timex.NewDuration(c.SweepPeriod),
		StagingExpiration:   timex.NewDuration(c.StagingExpiration),
		SweepBatchLimit:     c.SweepBatchLimit,
		ReclaimWorkers:      c.ReclaimWorkers,
		ReclaimQueueSize:    c.ReclaimQueueSize,
		S3RootUser:          c.S3RootUser,
		S3RootPassword:      c.S3RootPassword,
		S3Bucket:            c.S3Bucket,
		S3Region:            c.S3Region,
		S3BaseEndpoint:      c.S3BaseEndpoint,
	}
}

func (j *JsonConfig) apply(c *Config) {
	c.EndpointAddrHTTP = j.EndpointAddrHTTP
	c.EndpointAddrGRPC = j.EndpointAddrGRPC
	c.EndpointAddrMetrics = j.EndpointAddrMetrics
	c.DatabaseDSN = j.DatabaseDSN
	c.SecretKey = j.SecretKey
	c.LogLevel = j.LogLevel
	c.StorageDriver = j.StorageDriver
	c.StagingPath = j.StagingPath
	c.ResidentPath = j.ResidentPath
	c.MaxFileSize = j.MaxFileSize
	c.SweepPeriod = j.SweepPeriod.Duration
	c.StagingExpiration = j.StagingExpiration.Duration
	c.SweepBatchLimit = j.SweepBatchLimit
	c.ReclaimWorkers = j.ReclaimWorkers
	c.ReclaimQueueSize = j.ReclaimQueueSize
	c.S3RootUser = j.S3RootUser
	c.S3RootPassword = j.S3RootPassword
	c.S3Bucket = j.S3Bucket
	c.S3Region = j.S3Region
	c.S3BaseEndpoint = j.S3BaseEndpoint
}

// parseJson overlays the JSON file named by -c or -config onto config.
// Keys missing from the file keep their current values. It panics if the
// file cannot be read or parsed.
func parseJson(config *Config) {
	// try flags
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	if err := loadJsonFile(jsonConfigFile, config); err != nil {
		panic(err)
	}
}

func loadJsonFile(path string, config *Config) error {
	file, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	c := toJson(config)
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	c.apply(config)
	return nil
}

// MarshalIndent renders the configuration as the JSON file format. Secrets
// are masked unless withSecrets is set.
func (c *Config) MarshalIndent(withSecrets bool) ([]byte, error) {
	j := toJson(c)
	if !withSecrets {
		if j.SecretKey != "" {
			j.SecretKey = "***"
		}
		if j.S3RootPassword != "" {
			j.S3RootPassword = "***"
		}
	}
	return json.MarshalIndent(j, "", "  ")
}

// WriteDefaults writes the default configuration to path. An existing file
// is only replaced when force is set.
func WriteDefaults(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrConfigExists, path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	c := &Config{}
	c.LoadDefaults()

	data, err := c.MarshalIndent(true)
	if err != nil {
		return err
	}

	return os.WriteFile(path, append(data, '\n'), 0o600)
}
