package preferences

import (
	"errors"
	"fmt"

	"github.com/book-expert/read-aloud/internal/config"
	"github.com/book-expert/read-aloud/internal/core"
	"github.com/nats-io/nats.go"
)

// ErrJetStreamRequired indicates the NATS backend was selected without a
// JetStream context.
var ErrJetStreamRequired = errors.New("nats preference backend requires a jetstream context")

// Backend is a key-value store that owns resources to release.
type Backend interface {
	core.KeyValueStore
	Close() error
}

// Open creates the backend selected by cfg. jetstreamContext is only used by
// the NATS backend and may be nil otherwise.
func Open(cfg config.PreferencesConfig, natsCfg config.NATSConfig, jetstreamContext nats.JetStreamContext) (Backend, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return NewMemory(), nil
	case config.BackendFile:
		return opened(NewFile(cfg.Path))
	case config.BackendSQLite:
		return opened(NewSQLite(cfg.Path))
	case config.BackendNATS:
		if jetstreamContext == nil {
			return nil, ErrJetStreamRequired
		}

		return opened(NewNATS(jetstreamContext, natsCfg.PreferencesBucket))
	default:
		return nil, fmt.Errorf("%w: '%s'", config.ErrUnknownBackend, cfg.Backend)
	}
}

// opened converts a constructor result to a Backend, keeping the interface
// nil when the constructor failed.
func opened[T Backend](store T, err error) (Backend, error) {
	if err != nil {
		return nil, err
	}

	return store, nil
}
