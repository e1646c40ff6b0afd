package store

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/pms/internal/adapters/config"
	"go.trai.ch/pms/internal/core/ports"
)

// NodeID is the unique identifier for the installed store Graft node.
const NodeID graft.ID = "adapter.installed_store"

func init() {
	graft.Register(graft.Node[ports.InstalledStore]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.NodeID},
		Run: func(ctx context.Context) (ports.InstalledStore, error) {
			cfg, err := graft.Dep[*config.Config](ctx)
			if err != nil {
				return nil, err
			}
			return New(cfg.StatusPath()), nil
		},
	})
}
