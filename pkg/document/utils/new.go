// Package documentutils is the document store utility package
package documentutils

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/quarryhq/quarry/pkg/document"
	"github.com/quarryhq/quarry/pkg/document/inmemory"
	"github.com/quarryhq/quarry/pkg/document/postgres"
	"github.com/quarryhq/quarry/pkg/document/sqlite"
)

type NewStoreOpts struct {
	ProviderType string
	DBPath       string
	DSN          string
	Logger       *zap.Logger
}

func NewStore(ctx context.Context, o *NewStoreOpts) (document.Store, error) {
	switch o.ProviderType {
	case "memory":
		return inmemory.NewStore(), nil
	case "sqlite":
		return sqlite.NewStore(o.DBPath, o.Logger)
	case "postgres":
		return postgres.NewStore(ctx, o.DSN, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported document store provider: %s", o.ProviderType)
	}
}
