// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/pms/internal/adapters/archive"
	_ "go.trai.ch/pms/internal/adapters/config"
	_ "go.trai.ch/pms/internal/adapters/fetch"
	_ "go.trai.ch/pms/internal/adapters/lock"
	_ "go.trai.ch/pms/internal/adapters/logger"
	_ "go.trai.ch/pms/internal/adapters/repo"
	_ "go.trai.ch/pms/internal/adapters/script"
	_ "go.trai.ch/pms/internal/adapters/store"
	_ "go.trai.ch/pms/internal/adapters/transport"
	// Register app nodes.
	_ "go.trai.ch/pms/internal/app"
)
