package repo

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/pms/internal/adapters/config"
	"go.trai.ch/pms/internal/adapters/logger"
	"go.trai.ch/pms/internal/adapters/transport"
	"go.trai.ch/pms/internal/core/ports"
)

// NodeID is the unique identifier for the repository loader Graft node.
const NodeID graft.ID = "adapter.repo_loader"

func init() {
	graft.Register(graft.Node[*Loader]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.NodeID, logger.NodeID, transport.NodeID},
		Run: func(ctx context.Context) (*Loader, error) {
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
			return NewLoader(tr, log, cfg.SourcesPath, cfg.SnapshotPath()), nil
		},
	})
}
