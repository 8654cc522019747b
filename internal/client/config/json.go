package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/filekeeper/internal/flagx"
	"github.com/dmitrijs2005/filekeeper/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
type JsonConfig struct {
	ServerURL string         `json:"server_url"`
	Token     string         `json:"token"`
	ChunkSize int64          `json:"chunk_size"`
	Timeout   timex.Duration `json:"timeout"`
	Retries   int            `json:"retries"`
}

// parseJson overlays cfg with the JSON file named by -c or -config. Keys
// missing from the file keep their current values. Panics on read or
// unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	if err := loadJsonFile(jsonConfigFile, cfg); err != nil {
		panic(err)
	}
}

func loadJsonFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	jc := JsonConfig{
		ServerURL: cfg.ServerURL,
		Token:     cfg.Token,
		ChunkSize: cfg.ChunkSize,
		Timeout:   timex.NewDuration(cfg.Timeout),
		Retries:   cfg.Retries,
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		return err
	}

	cfg.ServerURL = jc.ServerURL
	cfg.Token = jc.Token
	cfg.ChunkSize = jc.ChunkSize
	cfg.Timeout = jc.Timeout.Duration
	cfg.Retries = jc.Retries
	return nil
}
