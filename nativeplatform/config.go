package nativeplatform

import (
	"runtime"
	"time"
)

// Config tunes query deadlines and the process scan used by backends that
// have to walk every process.
type Config struct {
	QueryTimeout   time.Duration `default:"30s"` // 0 = no deadline
	ProcessTimeout time.Duration `default:"3s"`
	MaxWorkers     int           `default:"0"` // 0 = auto-detect
	ChannelBuffer  int           `default:"1000"`
}

// DefaultConfig returns the settings used by the process-wide gate.
func DefaultConfig() Config {
	return Config{
		QueryTimeout:   30 * time.Second,
		ProcessTimeout: 3 * time.Second,
		MaxWorkers:     0,
		ChannelBuffer:  1000,
	}
}

// workers picks the scan pool size for processCount processes.
func (c Config) workers(processCount int) int {
	if c.MaxWorkers > 0 {
		return c.MaxWorkers
	}

	// IO-bound, so CPU * 4
	optimal := runtime.NumCPU() * 4
	if processCount < optimal {
		optimal = processCount
	}

	if optimal < 4 {
		optimal = 4
	}
	if optimal > 200 {
		optimal = 200
	}
	return optimal
}
