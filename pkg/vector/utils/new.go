package vectorutils

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/quarryhq/quarry/pkg/vector"
	"github.com/quarryhq/quarry/pkg/vector/memory"
	"github.com/quarryhq/quarry/pkg/vector/qdrantvec"
	"github.com/quarryhq/quarry/pkg/vector/sqlitevec"
)

type NewVectorDriverOpts struct {
	ProviderType string
	DBPath       string
	Host         string
	Port         int
	APIKey       string
	UseTLS       bool
	Collection   string
	Dimensions   uint
	Logger       *zap.Logger
}

func NewVectorDriver(ctx context.Context, o *NewVectorDriverOpts) (vector.Driver, error) {
	switch o.ProviderType {
	case "memory":
		return memory.NewDriver(memory.Config{
			Dimensions: o.Dimensions,
		}, o.Logger), nil
	case "sqlitevec":
		return sqlitevec.NewSQLiteVecDriver(sqlitevec.Config{
			DBPath:     o.DBPath,
			Dimensions: o.Dimensions,
		}, o.Logger)
	case "qdrant":
		return qdrantvec.NewDriver(ctx, qdrantvec.Config{
			Host:       o.Host,
			Port:       o.Port,
			APIKey:     o.APIKey,
			UseTLS:     o.UseTLS,
			Collection: o.Collection,
			Dimensions: o.Dimensions,
		}, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}
