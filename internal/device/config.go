package device

import (
	"fmt"
	"strconv"

	"github.com/spf13/viper"

	"github.com/deploymenttheory/go-avb/internal/services"
	"github.com/deploymenttheory/go-avb/internal/types"
)

// Config describes a device whose partitions are stored as image files.
type Config struct {
	// Directory holding one <partition>.img file per partition.
	PartitionsDir string `mapstructure:"partitions_dir"`

	// Reported device lock state.
	Unlocked bool `mapstructure:"unlocked"`

	// Accept main vbmeta images that are not signed.
	AllowUnsigned bool `mapstructure:"allow_unsigned"`

	// Paths to public keys trusted for the main vbmeta image, either AVB key
	// blocks or PEM encoded RSA keys.
	TrustedKeys []string `mapstructure:"trusted_keys"`

	// Stored rollback index by slot number.
	RollbackIndices map[string]uint64 `mapstructure:"rollback_indices"`

	// Unique partition GUIDs by full partition name. Partitions without an
	// entry get a GUID derived from their name.
	PartitionGUIDs map[string]string `mapstructure:"partition_guids"`

	// Largest image a hash descriptor may ask to load.
	MaxImageSize uint64 `mapstructure:"max_image_size"`

	// Fail verification on descriptors with unknown tags.
	RejectUnknownDescriptors bool `mapstructure:"reject_unknown_descriptors"`
}

// LoadConfig loads device configuration using Viper. If path is empty the
// usual locations are searched for avb-config.yaml; a missing file is not
// an error.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("avb-config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.avb")
		v.AddConfigPath("/etc/avb")
	}

	v.SetDefault("partitions_dir", ".")
	v.SetDefault("unlocked", false)
	v.SetDefault("allow_unsigned", false)
	v.SetDefault("trusted_keys", []string{})
	v.SetDefault("max_image_size", services.DefaultMaxImageSize)
	v.SetDefault("reject_unknown_descriptors", false)

	v.SetEnvPrefix("AVB")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if _, err := config.rollbackIndexes(); err != nil {
		return nil, err
	}

	return &config, nil
}

// SlotVerifierOptions returns the verifier options selected by c.
func (c *Config) SlotVerifierOptions() []services.SlotVerifierOption {
	opts := []services.SlotVerifierOption{services.WithRejectUnknownDescriptors(c.RejectUnknownDescriptors)}
	if c.MaxImageSize != 0 {
		opts = append(opts, services.WithMaxImageSize(c.MaxImageSize))
	}
	return opts
}

func (c *Config) rollbackIndexes() (map[uint32]uint64, error) {
	out := make(map[uint32]uint64, len(c.RollbackIndices))
	for key, value := range c.RollbackIndices {
		slot, err := strconv.ParseUint(key, 10, 32)
		if err != nil || slot >= types.MaxNumberOfRollbackIndexSlots {
			return nil, fmt.Errorf("invalid rollback index slot %q", key)
		}
		out[uint32(slot)] = value
	}
	return out, nil
}
