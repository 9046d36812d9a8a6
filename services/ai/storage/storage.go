package storage

import (
	"context"
	"errors"
	"fmt"

	config "github.com/xilidan/signposting/config/ai"
)

var ErrUnsupportedDriver = errors.New("unsupported database driver")

const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Records patches the conversation documents tied to one message. Every
// method reports whether a document matched; a miss is not an error.
type Records interface {
	UpdateMessage(ctx context.Context, messageID, transcript, uri string) (bool, error)
	UpdateFlowResponse(ctx context.Context, messageID, transcript, uri string) (bool, error)
	UpdateContactProfile(ctx context.Context, messageID, transcript string) (bool, error)
	Release()
}

// Storage is the process-wide pool. Each request acquires its own Records
// handle and must Release it.
type Storage interface {
	Acquire(ctx context.Context) (Records, error)
	Close(ctx context.Context) error
}

func Open(ctx context.Context, cfg *config.DatabaseConfig) (Storage, error) {
	switch cfg.Driver {
	case DriverMongo:
		return NewMongo(ctx, cfg)
	case DriverPostgres:
		return NewPostgres(ctx, cfg)
	case DriverMemory:
		return NewMemory(cfg.ProfileField), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver)
	}
}
