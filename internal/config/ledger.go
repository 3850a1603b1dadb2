package config

import (
	"errors"
	"time"
)

type Ledger struct {
	// OptimisticLocking writes stock with compare-and-set on the value read
	// before validation. Disabled, concurrent adjustments are last-writer-wins.
	OptimisticLocking bool          `env:"LEDGER_OPTIMISTIC_LOCKING" envDefault:"true"`
	MaxRetries        uint64        `env:"LEDGER_MAX_RETRIES" envDefault:"3"`
	RetryBackoff      time.Duration `env:"LEDGER_RETRY_BACKOFF" envDefault:"10ms"`
}

func (l Ledger) Validate() error {
	if l.RetryBackoff < 0 {
		return errors.New("LEDGER_RETRY_BACKOFF must not be negative")
	}
	return nil
}
