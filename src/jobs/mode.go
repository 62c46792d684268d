package jobs

import (
	"fmt"

	"rapport-agent/src/broker"
	"rapport-agent/src/config"
	"rapport-agent/src/logger"
	"rapport-agent/src/store"
)

// Mode is where job queueing happens.
type Mode string

const (
	// ModeLocal keeps the queue in-process. Jobs do not survive a restart
	// unless the store is persistent, and only this process runs them.
	ModeLocal Mode = "local"

	// ModeDistributed queues jobs on Redpanda so any process in the worker
	// group can run them.
	ModeDistributed Mode = "distributed"
)

// DetectMode picks distributed mode when brokers are configured.
func DetectMode(cfg *config.Config) Mode {
	if cfg.Distributed() {
		return ModeDistributed
	}
	return ModeLocal
}

// Infra is the store and broker a Manager runs on.
type Infra struct {
	Mode   Mode
	Store  store.JobStore
	Broker broker.Broker
}

// Close releases the broker and the store.
func (i *Infra) Close() error {
	berr := i.Broker.Close()
	serr := i.Store.Close()
	if berr != nil {
		return berr
	}
	return serr
}

// OpenInfra builds the job store and broker described by cfg.
func OpenInfra(cfg *config.Config, log logger.Logger) (*Infra, error) {
	if log == nil {
		log = logger.NewSilentLogger()
	}
	s, err := store.Open(cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open job store: %w", err)
	}

	mode := DetectMode(cfg)
	var b broker.Broker
	switch mode {
	case ModeDistributed:
		log.Info("[JobManager] Distributed mode: brokers %v", cfg.Jobs.Brokers)
		b, err = broker.NewRedpandaBroker(cfg.Jobs.Brokers, log)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to connect to Redpanda: %w", err)
		}
	default:
		log.Debug("[JobManager] Local mode: in-memory queue")
		b = broker.NewInMemoryBroker()
	}

	return &Infra{Mode: mode, Store: s, Broker: b}, nil
}
