package params

// This file contains all the code that directly uses the viper package.

import (
	"fmt"

	"github.com/spf13/viper"
)

// Viper is a Registry backed by a viper configuration file. The chirp profile
// exported by the radar configuration tool is written as a flat table of
// numeric keys (numTxAnt, numAdcSamples, chirpStartIdx, ...).
type Viper struct {
	v *viper.Viper
}

// LoadFile reads a parameter file of any format viper understands and returns
// a Registry over it.
func LoadFile(path string) (*Viper, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read parameter file %s: %w", path, err)
	}
	return &Viper{v: v}, nil
}

// Load searches for a config file named "mmwave" (without extension) in /opt
// and the current directory, for convenience on embedded images.
func Load() (*Viper, error) {
	v := viper.New()
	v.SetConfigName("mmwave")
	v.AddConfigPath("/opt")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read mmwave parameter file: %w", err)
	}
	return &Viper{v: v}, nil
}

func (r *Viper) Has(key string) bool {
	return r.v.IsSet(key)
}

func (r *Viper) Float(key string) (float64, error) {
	if !r.v.IsSet(key) {
		return 0, &ErrNotFound{Key: key}
	}
	return r.v.GetFloat64(key), nil
}

func (r *Viper) Int(key string) (int, error) {
	if !r.v.IsSet(key) {
		return 0, &ErrNotFound{Key: key}
	}
	return r.v.GetInt(key), nil
}
