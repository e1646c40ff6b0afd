package fetch

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/pms/internal/adapters/config"
	"go.trai.ch/pms/internal/adapters/logger"
	"go.trai.ch/pms/internal/adapters/transport"
	"go.trai.ch/pms/internal/core/ports"
)

// NodeID is the unique identifier for the archive fetcher Graft node.
const NodeID graft.ID = "adapter.archive_fetcher"

func init() {
	graft.Register(graft.Node[ports.ArchiveFetcher]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.NodeID, logger.NodeID, transport.NodeID},
		Run: func(ctx context.Context) (ports.ArchiveFetcher, error) {
			cfg, err := graft.Dep[*config.Config](ctx)
			if err != nil {
				return nil, err
			}
			tr, err := graft.Dep[ports.Transport](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return New(tr, log, cfg.ArchiveDir(), cfg.FetchRetries), nil
		},
	})
}
