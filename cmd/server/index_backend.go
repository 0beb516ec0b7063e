package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"stackcraft.ai/internal/persistence/indexdb"
	"stackcraft.ai/internal/sim/catalogs"
	"stackcraft.ai/internal/sim/session"
	"stackcraft.ai/internal/sim/tuning"
)

type runtimeIndex interface {
	session.ChangeLogger
	session.AuditLogger
	Close() error
	UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error
	Stats() indexdb.Stats
}

// openRuntimeIndex returns nil when indexing is off. SC_INDEX_BACKEND
// overrides the tuning file.
func openRuntimeIndex(tune tuning.Tuning, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("SC_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
		if !tune.Index.Enabled {
			backend = "none"
		}
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(tune.Index.Path)
	default:
		return nil, fmt.Errorf("unsupported SC_INDEX_BACKEND: %s", backend)
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
