package build

import (
	"context"
	"errors"
	"fmt"
	"strings"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"acrf/common"
	"acrf/ecrf"
	"acrf/edc"
	"acrf/edc/ecollect"
	"acrf/edc/rave"
	"acrf/state"
)

// StudyFlags select where study configuration comes from, exactly one of
// them has to be given.
func StudyFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "study", Aliases: []string{"s"}, Usage: "read study configuration from JSON `FILE`"},
		&cli.StringFlag{Name: "saved", Usage: "use study configuration stored under `ID`"},
		&cli.StringFlag{Name: "edc", Usage: "extract study configuration from EDC export `FILE`"},
		&cli.StringFlag{Name: "kind", Usage: "EDC export `TYPE` (supported types: " + strings.Join(common.SourceKindNames(), ", ") + "), detected from content when absent"},
	}
}

// LoadStudy reads study configuration selected by StudyFlags. Reference is
// the document used to resolve form pages when configuration is extracted
// from EDC export.
func LoadStudy(ctx context.Context, cmd *cli.Command, reference string) (*edc.Study, error) {
	env := state.EnvFromContext(ctx)

	var given []string
	for _, name := range []string{"study", "saved", "edc"} {
		if cmd.IsSet(name) {
			given = append(given, "--"+name)
		}
	}
	if len(given) != 1 {
		return nil, errors.New("exactly one of --study, --saved or --edc has to be specified")
	}

	switch given[0] {
	case "--study":
		return edc.Load(cmd.String("study"))
	case "--saved":
		db, err := env.Store()
		if err != nil {
			return nil, err
		}
		entry, err := db.Get(cmd.String("saved"))
		if err != nil {
			return nil, err
		}
		env.Log.Debug("Using stored study configuration", zap.String("id", entry.ID), zap.String("name", entry.Name))
		return entry.Study, nil
	}
	return Extract(cmd.String("edc"), cmd.String("kind"), reference, env.Log)
}

// Extract reads EDC export of given kind (detected when empty) resolving form
// pages against reference document.
func Extract(path, kind, reference string, log *zap.Logger) (*edc.Study, error) {
	var (
		sk  common.SourceKind
		err error
	)
	if kind != "" {
		if sk, err = common.ParseSourceKind(kind); err != nil {
			return nil, fmt.Errorf("unknown EDC export type: %w", err)
		}
	} else if sk, err = edc.Detect(path); err != nil {
		return nil, err
	}
	if reference == "" {
		return nil, errors.New("reference eCRF is required to resolve form pages")
	}

	lookup, err := ecrf.Load(reference, log)
	if err != nil {
		return nil, err
	}
	study, err := Reader(sk, log).Read(path, lookup)
	if err != nil {
		return nil, err
	}
	log.Info("Study configuration extracted",
		zap.String("source", path),
		zap.Stringer("kind", sk),
		zap.Int("visits", len(study.Visits)),
		zap.Int("forms", len(study.Forms)),
	)
	return study, nil
}

// Reader returns reader for EDC export kind.
func Reader(kind common.SourceKind, log *zap.Logger) edc.Reader {
	if kind == common.SourceKindRave {
		return rave.NewReader(log)
	}
	return ecollect.NewReader(log)
}
