// pdfdump loads PDF file into page-object graph and writes what the program
// sees there: trailer, page tree with link destinations, outline and object
// statistics. Optionally writes compacted copy of the graph, which is handy
// to check what survives merging.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"acrf/pdf"
	"acrf/utils/debug"
)

func main() {
	dump := flag.Bool("dump", false, "dump graph structure into <file>-dump.txt")
	compact := flag.Bool("compact", false, "write graph without unreachable objects into <file>-compact.pdf")
	overwrite := flag.Bool("overwrite", false, "overwrite existing output")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: pdfdump [-dump] [-compact] [-overwrite] <file.pdf> [outdir]\n\n")
		fmt.Fprintf(os.Stderr, "Without flags graph structure is printed to STDOUT.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 || flag.NArg() > 2 {
		flag.Usage()
		os.Exit(2)
	}

	defer func(startedAt time.Time) {
		fmt.Fprintf(os.Stderr, "\nExecution time: %s\n", time.Since(startedAt))
	}(time.Now())

	inPath := flag.Arg(0)
	outDir := ""
	if flag.NArg() == 2 {
		outDir = flag.Arg(1)
	}

	doc, err := pdf.Load(inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "loaded %s: %d objects, %d pages\n", inPath, len(doc.Objects), doc.PageCount())

	graph := debug.Graph(doc)
	if !*dump && !*compact {
		fmt.Print(graph)
		return
	}

	if *dump {
		if err := writeOutput(inPath, outDir, "-dump.txt", []byte(graph), *overwrite); err != nil {
			fmt.Fprintf(os.Stderr, "dump: %v\n", err)
			os.Exit(1)
		}
	}
	if *compact {
		before := len(doc.Objects)
		doc.Compact()
		data, err := doc.Bytes()
		if err != nil {
			fmt.Fprintf(os.Stderr, "compact: %v\n", err)
			os.Exit(1)
		}
		if err := writeOutput(inPath, outDir, "-compact.pdf", data, *overwrite); err != nil {
			fmt.Fprintf(os.Stderr, "compact: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "removed %d unreachable object(s)\n", before-len(doc.Objects))
	}
}

func writeOutput(inPath, outDir, suffix string, data []byte, overwrite bool) error {
	base := filepath.Base(inPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	dir := filepath.Dir(inPath)
	if outDir != "" {
		dir = outDir
	}
	outPath := filepath.Join(dir, stem+suffix)

	if _, err := os.Stat(outPath); err == nil {
		if !overwrite {
			return fmt.Errorf("output file already exists: %s (use -overwrite)", outPath)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "wrote %s\n", outPath)
	return nil
}
