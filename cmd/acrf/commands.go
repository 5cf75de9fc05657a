package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"acrf/build"
	"acrf/ecrf"
	"acrf/edc"
	"acrf/state"
	"acrf/toc"
)

func stdout(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

// writeOutput writes data to the file or to STDOUT when name is empty.
func writeOutput(cmd *cli.Command, fname string, data []byte) error {
	if len(fname) == 0 {
		_, err := stdout(cmd).Write(data)
		return err
	}
	if err := os.WriteFile(fname, data, 0644); err != nil {
		return fmt.Errorf("unable to write '%s': %w", fname, err)
	}
	return nil
}

func extractStudy(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)

	if cmd.Args().Len() < 2 {
		return errors.New("EDC export and reference CRF are required")
	}
	if cmd.Args().Len() > 3 {
		env.Log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[3:]))
	}

	study, err := build.Extract(cmd.Args().Get(0), cmd.String("kind"), cmd.Args().Get(1), env.Log)
	if err != nil {
		return err
	}
	data, err := study.Encode()
	if err != nil {
		return err
	}
	if err := writeOutput(cmd, cmd.Args().Get(2), data); err != nil {
		return err
	}

	if name := cmd.String("save"); len(name) > 0 {
		db, err := env.Store()
		if err != nil {
			return err
		}
		id, err := db.Save("", name, study)
		if err != nil {
			return err
		}
		env.Log.Info("Study configuration stored", zap.String("id", id), zap.String("name", name))
	}
	return nil
}

func listForms(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)

	ref := cmd.Args().Get(0)
	if len(ref) == 0 {
		return errors.New("no reference CRF has been specified")
	}
	lookup, err := ecrf.Load(ref, env.Log)
	if err != nil {
		return err
	}
	forms := lookup.Forms()
	if len(forms) == 0 {
		env.Log.Warn("Reference CRF has no bookmarks", zap.String("path", ref))
		return nil
	}
	w := stdout(cmd)
	for _, name := range forms {
		page, _ := lookup.FormPage(name)
		fmt.Fprintf(w, "%5d  %s\n", page, name)
	}
	return nil
}

func printTrees(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)

	study, err := build.LoadStudy(ctx, cmd, cmd.Args().Get(0))
	if err != nil {
		return err
	}
	byVisit, byForm := toc.Trees(study, env.Cfg.Build.VisitTitle, env.Cfg.Build.FormTitle)
	w := stdout(cmd)
	for _, tree := range []*toc.Node{byVisit, byForm} {
		fmt.Fprint(w, tree.Print())
	}
	return nil
}

func storeCommand() *cli.Command {
	return &cli.Command{
		Name:         "store",
		Usage:        "Manages stored study configurations",
		OnUsageError: usageErrorHandler,
		Commands: []*cli.Command{
			{
				Name:         "save",
				Usage:        "Stores study configuration from JSON file",
				OnUsageError: usageErrorHandler,
				Action:       storeSave,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Usage: "replace configuration stored under `ID`"},
				},
				ArgsUsage: "FILE NAME",
			},
			{
				Name:         "list",
				Usage:        "Lists stored study configurations",
				OnUsageError: usageErrorHandler,
				Action:       storeList,
			},
			{
				Name:         "show",
				Usage:        "Prints stored study configuration (JSON)",
				OnUsageError: usageErrorHandler,
				Action:       storeShow,
				ArgsUsage:    "ID",
			},
			{
				Name:         "remove",
				Usage:        "Removes stored study configuration",
				OnUsageError: usageErrorHandler,
				Action:       storeRemove,
				ArgsUsage:    "ID",
			},
			{
				Name:         "export",
				Usage:        "Writes stored study configuration to JSON file named after it",
				OnUsageError: usageErrorHandler,
				Action:       storeExport,
				ArgsUsage:    "ID [DIRECTORY]",
			},
		},
	}
}

func storeSave(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)
	if cmd.Args().Len() != 2 {
		return errors.New("study configuration file and name are required")
	}
	study, err := edc.Load(cmd.Args().Get(0))
	if err != nil {
		return err
	}
	db, err := env.Store()
	if err != nil {
		return err
	}
	id, err := db.Save(cmd.String("id"), cmd.Args().Get(1), study)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout(cmd), id)
	return nil
}

func storeList(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)
	db, err := env.Store()
	if err != nil {
		return err
	}
	entries, err := db.List()
	if err != nil {
		return err
	}
	w := stdout(cmd)
	for _, e := range entries {
		fmt.Fprintf(w, "%s  %s  %s\n", e.ID, e.Updated.Local().Format(time.DateTime), e.Name)
	}
	return nil
}

func storeShow(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)
	db, err := env.Store()
	if err != nil {
		return err
	}
	entry, err := db.Get(cmd.Args().Get(0))
	if err != nil {
		return err
	}
	data, err := entry.Study.Encode()
	if err != nil {
		return err
	}
	return writeOutput(cmd, "", append(data, '\n'))
}

func storeRemove(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)
	db, err := env.Store()
	if err != nil {
		return err
	}
	id := cmd.Args().Get(0)
	if err := db.Remove(id); err != nil {
		return err
	}
	env.Log.Info("Study configuration removed", zap.String("id", id))
	return nil
}

func storeExport(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)
	db, err := env.Store()
	if err != nil {
		return err
	}
	dir := cmd.Args().Get(1)
	if len(dir) == 0 {
		dir = "."
	}
	if dir, err = filepath.Abs(dir); err != nil {
		return err
	}
	path, err := db.Export(cmd.Args().Get(0), dir)
	if err != nil {
		return err
	}
	env.Log.Info("Study configuration exported", zap.String("file", path))
	return nil
}
