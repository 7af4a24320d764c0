package geometry

import (
	"fmt"

	"github.com/spf13/viper"
)

// fileConfig mirrors the on-disk profile file layout.
type fileConfig struct {
	Canvas   Canvas             `mapstructure:"canvas"`
	Defaults struct {
		Queue string `mapstructure:"queue"`
	} `mapstructure:"defaults"`
	Profiles map[string]Profile `mapstructure:"profiles"`
}

// Load reads the label profile file and returns a validated Set.
func Load(path string) (*Set, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read profiles %s: %w", path, err)
	}

	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, fmt.Errorf("parse profiles %s: %w", path, err)
	}

	profiles := make(map[LabelType]Profile, len(fc.Profiles))
	for name, p := range fc.Profiles {
		if p.Match.Threshold == 0 {
			p.Match.Threshold = DefaultThreshold
		}
		profiles[LabelType(name)] = p
	}
	return NewSet(fc.Canvas, fc.Defaults.Queue, profiles)
}

// DefaultThreshold is the binarization cutoff used when a rule does not set
// one. Label stock scans nearly white, so anything darker than this counts
// as ink.
const DefaultThreshold = 220
