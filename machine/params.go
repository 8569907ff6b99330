// Package machine is the reference implementation of the §6 machine
// parameters external input: the small set of target-architecture
// numbers the cost model and schedule emitter need (parallelism
// floor, last-level cache size, the cost-model balance constant, and
// SIMD width), loadable from a YAML file or falling back to sane
// defaults.
package machine

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Params holds the cost-model's architecture-dependent constants.
type Params struct {
	Parallelism        int64 `yaml:"parallelism"`
	LastLevelCacheSize  int64 `yaml:"last_level_cache_size"`
	Balance             int64 `yaml:"balance"`
	VectorBytes         int   `yaml:"vector_bytes"`
}

// Default mirrors a generic modern desktop/server core: 16-way
// parallel, 8MB LLC, a balance of 40 (the ratio Halide's own cost
// model was tuned against), 32-byte vector registers.
func Default() Params {
	return Params{
		Parallelism:        16,
		LastLevelCacheSize: 8 * 1024 * 1024,
		Balance:            40,
		VectorBytes:        32,
	}
}

// Load reads machine parameters from a YAML file at path. Zero-valued
// fields are left as written; callers that want defaults layered
// underneath should start from Default() and call MergeFrom.
func Load(path string) (Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Params{}, errors.Wrapf(err, "reading machine params %q", path)
	}
	var p Params
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Params{}, errors.Wrapf(err, "parsing machine params %q", path)
	}
	return p, nil
}

// MergeFrom overlays any non-zero field of override onto p, returning
// the result. Used to let a partial YAML file override only the
// fields it mentions, on top of Default().
func (p Params) MergeFrom(override Params) Params {
	out := p
	if override.Parallelism != 0 {
		out.Parallelism = override.Parallelism
	}
	if override.LastLevelCacheSize != 0 {
		out.LastLevelCacheSize = override.LastLevelCacheSize
	}
	if override.Balance != 0 {
		out.Balance = override.Balance
	}
	if override.VectorBytes != 0 {
		out.VectorBytes = override.VectorBytes
	}
	return out
}

// NaturalVectorSize returns how many elements of elemBytes fit in one
// vector register, at least 1.
func (p Params) NaturalVectorSize(elemBytes int) int {
	if elemBytes <= 0 || p.VectorBytes <= 0 {
		return 1
	}
	n := p.VectorBytes / elemBytes
	if n < 1 {
		return 1
	}
	return n
}
