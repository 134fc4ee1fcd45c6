package metadata

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// GenerateConfig is the static input of a generation run. Length is only
// used when no HDR10+ source supplies the frame count.
type GenerateConfig struct {
	Length      uint64
	TargetNits  *uint16
	SourceMinPQ *uint16
	SourceMaxPQ *uint16
	Level2      []Level2Metadata
	Level5      *Level5Metadata
	Level6      *Level6Metadata
}

// configFile mirrors GenerateConfig on disk. Trim fields are pointers so
// absent values can take their defaults.
type configFile struct {
	Length      *uint64         `json:"length" yaml:"length"`
	TargetNits  *uint16         `json:"target_nits" yaml:"target_nits"`
	SourceMinPQ *uint16         `json:"source_min_pq" yaml:"source_min_pq"`
	SourceMaxPQ *uint16         `json:"source_max_pq" yaml:"source_max_pq"`
	Level2      []level2File    `json:"level2" yaml:"level2"`
	Level5      *Level5Metadata `json:"level5" yaml:"level5"`
	Level6      *Level6Metadata `json:"level6" yaml:"level6"`
}

type level2File struct {
	TargetNits         *uint16 `json:"target_nits" yaml:"target_nits"`
	TrimSlope          *uint16 `json:"trim_slope" yaml:"trim_slope"`
	TrimOffset         *uint16 `json:"trim_offset" yaml:"trim_offset"`
	TrimPower          *uint16 `json:"trim_power" yaml:"trim_power"`
	TrimChromaWeight   *uint16 `json:"trim_chroma_weight" yaml:"trim_chroma_weight"`
	TrimSaturationGain *uint16 `json:"trim_saturation_gain" yaml:"trim_saturation_gain"`
	MSWeight           *int16  `json:"ms_weight" yaml:"ms_weight"`
}

func orTrim(v *uint16) uint16 {
	if v == nil {
		return DefaultTrim
	}
	return *v
}

func (c *configFile) toConfig() (*GenerateConfig, error) {
	if c.Length == nil {
		return nil, errors.New("length is required")
	}
	cfg := &GenerateConfig{
		Length:      *c.Length,
		TargetNits:  c.TargetNits,
		SourceMinPQ: c.SourceMinPQ,
		SourceMaxPQ: c.SourceMaxPQ,
		Level5:      c.Level5,
		Level6:      c.Level6,
	}
	for i, l2 := range c.Level2 {
		if l2.TargetNits == nil {
			return nil, fmt.Errorf("level2[%d]: target_nits is required", i)
		}
		ms := int16(DefaultTrim)
		if l2.MSWeight != nil {
			ms = *l2.MSWeight
		}
		cfg.Level2 = append(cfg.Level2, Level2Metadata{
			TargetNits:         *l2.TargetNits,
			TrimSlope:          orTrim(l2.TrimSlope),
			TrimOffset:         orTrim(l2.TrimOffset),
			TrimPower:          orTrim(l2.TrimPower),
			TrimChromaWeight:   orTrim(l2.TrimChromaWeight),
			TrimSaturationGain: orTrim(l2.TrimSaturationGain),
			MSWeight:           ms,
		})
	}
	return cfg, nil
}

// ParseConfig decodes a generation config. YAML is used when isYAML is set,
// JSON otherwise. Unknown keys are ignored in both formats.
func ParseConfig(data []byte, isYAML bool) (*GenerateConfig, error) {
	var raw configFile
	if isYAML {
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	} else {
		if err := json.NewDecoder(bytes.NewReader(data)).Decode(&raw); err != nil {
			return nil, err
		}
	}
	return raw.toConfig()
}

// LoadConfig reads a generation config from path. Files ending in .yaml or
// .yml are decoded as YAML, anything else as JSON.
func LoadConfig(path string) (*GenerateConfig, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, NewError(ErrInputNotFound, SourceConfig, path, err)
	}
	cfg, err := ParseConfig(data, IsYAMLPath(path))
	if err != nil {
		return nil, NewError(ErrMalformedMetadata, SourceConfig, path, err)
	}
	return cfg, nil
}

// IsYAMLPath reports whether path has a YAML extension.
func IsYAMLPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
