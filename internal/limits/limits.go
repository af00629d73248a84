// Package limits reads the process-wide character limits that bound
// context accumulation, child-process input, and child-process output.
package limits

import (
	"fmt"
	"os"
	"strconv"
)

// Defaults applied when the corresponding environment variable is unset.
const (
	DefaultMaxContextChars = 100000
	DefaultMaxInputChars   = 120000
	DefaultMaxOutputChars  = 200000
)

// Limits is the read-only set of char/size caps consulted by State,
// Executor, and Config defaults.
type Limits struct {
	MaxContextChars int
	MaxInputChars   int
	MaxOutputChars  int
}

// Load reads MAX_CONTEXT_CHARS, MAX_INPUT_CHARS and MAX_OUTPUT_CHARS from
// the environment. A variable present with a non-numeric or non-positive
// value fails the process at initialization; there is no silent fallback.
func Load() (Limits, error) {
	ctx, err := positiveIntEnv("MAX_CONTEXT_CHARS", DefaultMaxContextChars)
	if err != nil {
		return Limits{}, err
	}
	in, err := positiveIntEnv("MAX_INPUT_CHARS", DefaultMaxInputChars)
	if err != nil {
		return Limits{}, err
	}
	out, err := positiveIntEnv("MAX_OUTPUT_CHARS", DefaultMaxOutputChars)
	if err != nil {
		return Limits{}, err
	}
	return Limits{
		MaxContextChars: ctx,
		MaxInputChars:   in,
		MaxOutputChars:  out,
	}, nil
}

// MustLoad is Load but panics on error; intended for use only from
// process entry points that treat a bad env var as a fatal startup error.
func MustLoad() Limits {
	l, err := Load()
	if err != nil {
		panic(err)
	}
	return l
}

func positiveIntEnv(name string, def int) (int, error) {
	raw, ok := os.LookupEnv(name)
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("limits: %s=%q is not a valid integer", name, raw)
	}
	if v <= 0 {
		return 0, fmt.Errorf("limits: %s=%d must be positive", name, v)
	}
	return v, nil
}
