package build

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"acrf/config"
	"acrf/state"
)

// Run is the build command action.
func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("build")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no annotated CRF has been specified")
	}
	if src, err = filepath.Abs(src); err != nil {
		return err
	}
	if cmd.Args().Len() > 2 {
		log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	env.Overwrite = cmd.Bool("overwrite")
	env.KeepWorkspace = cmd.Bool("keep") || env.Cfg.Build.KeepWorkspace

	dst, err := outputPath(src, cmd.Args().Get(1))
	if err != nil {
		return err
	}
	if dst == src {
		return fmt.Errorf("destination '%s' is the source document", dst)
	}
	if _, err := os.Stat(dst); err == nil && !env.Overwrite {
		return fmt.Errorf("destination '%s' already exists", dst)
	}

	study, err := LoadStudy(ctx, cmd, src)
	if err != nil {
		return err
	}
	workspace, err := env.PrepareWorkspace(cmd.String("workspace"))
	if err != nil {
		return err
	}
	b, err := New(study, &env.Cfg.Build, env.Log, WithReport(env.Rpt))
	if err != nil {
		return err
	}

	log.Info("Processing starting", zap.String("source", src), zap.String("destination", dst))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	rep, err := b.Run(ctx, Params{Source: src, Destination: dst, Workspace: workspace})
	if err != nil {
		return err
	}
	if len(rep.Warnings) > 0 {
		log.Warn("Some links were left unchanged", zap.Int("count", len(rep.Warnings)))
	}
	if env.KeepWorkspace {
		log.Info("Intermediate files kept", zap.String("workspace", workspace))
	}
	return nil
}

// outputPath returns destination document path. Destination may be omitted
// (current directory) or be a directory, then file name is derived from the
// source.
func outputPath(src, dst string) (string, error) {
	var err error
	if len(dst) == 0 {
		if dst, err = os.Getwd(); err != nil {
			return "", fmt.Errorf("unable to get working directory: %w", err)
		}
	}
	if dst, err = filepath.Abs(dst); err != nil {
		return "", err
	}
	if info, err := os.Stat(dst); err != nil || !info.IsDir() {
		return dst, nil
	}
	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	return filepath.Join(dst, config.CleanFileName(base+"-annotated")+".pdf"), nil
}
