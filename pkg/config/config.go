// Package config reifies the build-time flags spec.md §6 lists as
// environment/build flags (SEQUENTIAL_ELISION, DISABLE_ELASTIC,
// ELASTIC_SPINSLEEP, ENABLE_STATS, ENABLE_LOGGING) into fields on a value,
// per Design Notes §9 ("Global started flag and static dummy bytes ...
// reify as fields on a Runtime value passed through launch; avoid
// process-wide state so multiple pools can coexist in tests").
package config

import "os"

// Config carries every environment-selected behavior of the runtime.
type Config struct {
	// SequentialElision makes Fork2 execute both children inline with no
	// pool at all (spec.md §6).
	SequentialElision bool
	// DisableElastic selects the Minimal elastic policy (no sleeping).
	DisableElastic bool
	// ElasticSpinSleep selects the bounded-spin-then-block variant of the
	// Sleeping elastic policy.
	ElasticSpinSleep bool
	// EnableStats turns on the Prometheus export of the stats counters.
	EnableStats bool
	// EnableLogging turns on the logrus event-logging backend.
	EnableLogging bool
}

// FromEnv reads the five flags from the process environment, matching the
// original's compile-time #ifdefs by name.
func FromEnv() Config {
	return Config{
		SequentialElision: isSet("SEQUENTIAL_ELISION"),
		DisableElastic:    isSet("DISABLE_ELASTIC"),
		ElasticSpinSleep:  isSet("ELASTIC_SPINSLEEP"),
		EnableStats:       isSet("ENABLE_STATS"),
		EnableLogging:     isSet("ENABLE_LOGGING"),
	}
}

func isSet(name string) bool {
	v, ok := os.LookupEnv(name)
	return ok && v != "" && v != "0"
}
