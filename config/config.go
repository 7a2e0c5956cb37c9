// Package config loads the miner daemon configuration from TOML, with
// defaults suitable for a workstation.
package config

import (
	"os"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	fasthex "github.com/tmthrgd/go-hex"

	"github.com/cyberia-to/universal-hash/types"
)

type Config struct {
	// Rotation state. Seed is 64 hex characters; in production it comes
	// from the epoch controller, here it seeds the first session.
	Seed           string `toml:"seed"`
	Address        string `toml:"address"`
	DifficultyBits uint   `toml:"difficulty_bits"`

	// Worker tuning. Workers <= 0 means one per CPU.
	Workers   int    `toml:"workers"`
	BatchSize uint64 `toml:"batch_size"`

	// Sinks and stores. Empty disables the respective component.
	ProofLogPath string `toml:"proof_log_path"`
	PromListen   string `toml:"prom_listen"`
	ZMQPublish   string `toml:"zmq_publish"`

	StatsIntervalSeconds uint `toml:"stats_interval_seconds"`
}

func Default() Config {
	return Config{
		DifficultyBits:       16,
		Workers:              0,
		BatchSize:            16,
		PromListen:           ":2112",
		StatsIntervalSeconds: 10,
	}
}

// Load reads path over the defaults. A missing file is not an error; flags
// can carry the whole configuration.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	buf, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, errors.Wrap(err, "config: read")
	}
	if err = toml.Unmarshal(buf, &cfg); err != nil {
		return cfg, errors.Wrap(err, "config: parse")
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Address == "" {
		return errors.New("config: miner address is required")
	}
	if c.DifficultyBits > 255 {
		return errors.New("config: difficulty_bits must fit in 8 bits")
	}
	if _, err := c.SeedHash(); err != nil {
		return err
	}
	return nil
}

// SeedHash decodes the hex seed. An empty seed is the zero seed.
func (c *Config) SeedHash() (types.Hash, error) {
	if c.Seed == "" {
		return types.ZeroHash, nil
	}
	buf, err := fasthex.DecodeString(c.Seed)
	if err != nil {
		return types.ZeroHash, errors.Wrap(err, "config: seed is not hex")
	}
	if len(buf) != types.HashSize {
		return types.ZeroHash, errors.New("config: seed must be 32 bytes")
	}
	return types.HashFromBytes(buf), nil
}
