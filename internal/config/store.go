package config

import (
	"fmt"
	"strings"
)

type Store struct {
	Backend StoreBackend `env:"STORE_BACKEND" envDefault:"POSTGRES"`
	// AutoMigrate applies pending schema migrations on startup.
	AutoMigrate bool `env:"STORE_AUTO_MIGRATE" envDefault:"false"`
}

// StoreBackend selects the persistence adapter.
type StoreBackend uint8

const (
	StoreBackendPostgres StoreBackend = iota
	StoreBackendMemory
)

func (b StoreBackend) String() string {
	switch b {
	case StoreBackendPostgres:
		return "POSTGRES"
	case StoreBackendMemory:
		return "MEMORY"
	default:
		return fmt.Sprintf("StoreBackend(%d)", uint8(b))
	}
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (b *StoreBackend) UnmarshalText(text []byte) error {
	switch strings.ToUpper(string(text)) {
	case "POSTGRES":
		*b = StoreBackendPostgres
	case "MEMORY":
		*b = StoreBackendMemory
	default:
		return fmt.Errorf("unknown store backend: %s", text)
	}
	return nil
}

func (b StoreBackend) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}
