package lock

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/pms/internal/adapters/config"
	"go.trai.ch/pms/internal/adapters/logger"
	"go.trai.ch/pms/internal/core/ports"
)

// NodeID is the unique identifier for the locker Graft node.
const NodeID graft.ID = "adapter.locker"

func init() {
	graft.Register(graft.Node[ports.Locker]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.NodeID, logger.NodeID},
		Run: func(ctx context.Context) (ports.Locker, error) {
			cfg, err := graft.Dep[*config.Config](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return New(cfg.LockPath(), log), nil
		},
	})
}
