// Package config carries the runtime defaults for greyhound commands.
// Values resolve through viper so every flag default can be overridden with
// a GREYHOUND_* environment variable (GREYHOUND_SCALED=2000, etc.).
package config

import (
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// Built-in defaults, matching the sourmash conventions for bacterial
// genomes.
const (
	DefaultKsize       = 31
	DefaultScaled      = 1000
	DefaultThresholdBp = 50000
)

func init() {
	viper.SetEnvPrefix("GREYHOUND")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("ksize", DefaultKsize)
	viper.SetDefault("scaled", DefaultScaled)
	viper.SetDefault("threshold-bp", DefaultThresholdBp)
	viper.SetDefault("workers", runtime.GOMAXPROCS(0))
}

// Ksize returns the k-mer size to select sketches with.
func Ksize() uint32 { return viper.GetUint32("ksize") }

// Scaled returns the scaled subsampling factor to select sketches with.
func Scaled() uint64 { return viper.GetUint64("scaled") }

// ThresholdBp returns the minimum overlap, in base pairs, for gather
// matches.
func ThresholdBp() uint64 { return viper.GetUint64("threshold-bp") }

// Workers returns the parallelism bound for index build and batch gather.
func Workers() int { return viper.GetInt("workers") }
