package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/pms/internal/adapters/archive"
	"go.trai.ch/pms/internal/adapters/config"
	"go.trai.ch/pms/internal/adapters/fetch"
	"go.trai.ch/pms/internal/adapters/lock"
	"go.trai.ch/pms/internal/adapters/logger"
	"go.trai.ch/pms/internal/adapters/repo"
	"go.trai.ch/pms/internal/adapters/script"
	"go.trai.ch/pms/internal/adapters/store"
	"go.trai.ch/pms/internal/core/ports"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components Graft node.
	ComponentsNodeID graft.ID = "app.components"
)

func init() {
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			repo.NodeID,
			store.NodeID,
			fetch.NodeID,
			script.NodeID,
			archive.NodeID,
			lock.NodeID,
			logger.NodeID,
		},
		Run: runAppNode,
	})

	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.NodeID,
		},
		Run: runComponentsNode,
	})
}

func runAppNode(ctx context.Context) (*App, error) {
	cfg, err := graft.Dep[*config.Config](ctx)
	if err != nil {
		return nil, err
	}

	loader, err := graft.Dep[*repo.Loader](ctx)
	if err != nil {
		return nil, err
	}

	installed, err := graft.Dep[ports.InstalledStore](ctx)
	if err != nil {
		return nil, err
	}

	fetcher, err := graft.Dep[ports.ArchiveFetcher](ctx)
	if err != nil {
		return nil, err
	}

	scripts, err := graft.Dep[ports.ScriptRunner](ctx)
	if err != nil {
		return nil, err
	}

	archiver, err := graft.Dep[ports.Archiver](ctx)
	if err != nil {
		return nil, err
	}

	locker, err := graft.Dep[ports.Locker](ctx)
	if err != nil {
		return nil, err
	}

	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}

	return New(cfg, loader, installed, fetcher, scripts, archiver, locker, log), nil
}

func runComponentsNode(ctx context.Context) (*Components, error) {
	application, err := graft.Dep[*App](ctx)
	if err != nil {
		return nil, err
	}

	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}

	return &Components{
		App:    application,
		Logger: log,
	}, nil
}
