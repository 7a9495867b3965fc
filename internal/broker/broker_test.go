package broker

import "github.com/nanomq-go/nanomq/internal/config"

// testConfig returns a Config safe for constructing a Broker in tests: the
// documented defaults with a smaller work-item pool; the task-queue pool
// keeps its 8 slots, more than any test holds at once, so Step never blocks.
func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Parallel = 4
	cfg.MaxTaskQThread = 8
	return cfg
}
