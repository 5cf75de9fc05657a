// Package state defines shared program state.
package state

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"acrf/config"
	"acrf/misc"
	"acrf/store"
)

type envKey struct{}

// LocalEnv keeps everything program needs in a single place.
type LocalEnv struct {
	Cfg *config.Config
	Rpt *config.Report
	Log *zap.Logger

	// used by build subcommand
	Overwrite     bool
	KeepWorkspace bool

	db         *store.Store
	workspaces []string

	start         time.Time
	restoreStdLog func()
}

func EnvFromContext(ctx context.Context) *LocalEnv {
	if env, ok := ctx.Value(envKey{}).(*LocalEnv); ok {
		return env
	}
	// this should never happen
	panic("localenv not found in context")
}

func ContextWithEnv(ctx context.Context) context.Context {
	return context.WithValue(ctx, envKey{}, newLocalEnv())
}

func (e *LocalEnv) Uptime() time.Duration {
	return time.Since(e.start)
}

func (e *LocalEnv) RedirectStdLog() {
	if e.Log == nil {
		return
	}
	e.restoreStdLog = zap.RedirectStdLog(e.Log)
}

func (e *LocalEnv) RestoreStdLog() {
	if e.Log != nil {
		_ = e.Log.Sync()
	}
	if e.restoreStdLog != nil {
		e.restoreStdLog()
	}
}

// Store opens configuration database on first use.
func (e *LocalEnv) Store() (*store.Store, error) {
	if e.db != nil {
		return e.db, nil
	}
	if e.Cfg == nil {
		return nil, fmt.Errorf("configuration is not loaded")
	}
	db, err := store.Open(e.Cfg.Store.Path, e.Log)
	if err != nil {
		return nil, err
	}
	e.db = db
	return db, nil
}

// PrepareWorkspace returns directory for intermediate build files. When dir is
// empty new temporary directory is created and removed by Close unless
// workspace should be kept. Workspace is always put into debug report.
func (e *LocalEnv) PrepareWorkspace(dir string) (string, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("unable to create workspace: %w", err)
		}
	} else {
		var err error
		if dir, err = os.MkdirTemp("", misc.GetAppName()+"-"); err != nil {
			return "", fmt.Errorf("unable to create workspace: %w", err)
		}
		if !e.KeepWorkspace {
			e.workspaces = append(e.workspaces, dir)
		}
	}
	// report is finalized before workspace removal, see Close
	e.Rpt.Store("workspace", dir)
	return dir, nil
}

// Close releases everything environment owns: database, debug report and
// temporary workspaces.
func (e *LocalEnv) Close() error {
	var err error
	if e.db != nil {
		err = multierr.Append(err, e.db.Close())
		e.db = nil
	}
	err = multierr.Append(err, e.Rpt.Close())
	for _, dir := range e.workspaces {
		err = multierr.Append(err, os.RemoveAll(dir))
	}
	e.workspaces = nil
	return err
}
