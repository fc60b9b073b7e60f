package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/custodia-labs/convoharvest/internal/adapters/driven/config/env"
	"github.com/custodia-labs/convoharvest/internal/adapters/driven/config/file"
	"github.com/custodia-labs/convoharvest/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/convoharvest/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/convoharvest/internal/adapters/driving/cli"
	"github.com/custodia-labs/convoharvest/internal/core/ports/driven"
	"github.com/custodia-labs/convoharvest/internal/core/services"
)

// memoryConfigDir selects in-memory settings and ledger, for dry runs and tests.
const memoryConfigDir = ":memory:"

// bootstrap wires the long-lived services for a configuration directory.
func bootstrap(configDir string) (*cli.Services, error) {
	var (
		store   driven.ConfigStore
		ledger  driven.RunLedger
		closers closerList
	)

	if configDir == memoryConfigDir {
		store = memory.NewConfigStore()
		ledger = memory.NewRunLedger()
	} else {
		fileStore, err := file.NewConfigStore(configDir)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		store = fileStore

		ledgerStore, err := sqlite.NewStore(filepath.Join(filepath.Dir(fileStore.Path()), "data"))
		if err != nil {
			return nil, fmt.Errorf("open run ledger: %w", err)
		}
		closers.add(ledgerStore.Close)
		ledger = ledgerStore.RunLedger()
	}

	return &cli.Services{
		Settings: services.NewSettingsService(store),
		History:  services.NewRunHistoryService(ledger),
		Planner:  newPlanner(ledger),
		Overlay:  env.Resolve,
		Close:    closers.close,
	}, nil
}

// closerList closes resources in reverse order of acquisition.
type closerList []func() error

func (c *closerList) add(fn func() error) {
	*c = append(*c, fn)
}

func (c *closerList) close() error {
	var errs []error
	for i := len(*c) - 1; i >= 0; i-- {
		if err := (*c)[i](); err != nil {
			errs = append(errs, err)
		}
	}
	*c = nil
	return errors.Join(errs...)
}
