// Command ftsearch indexes a directory tree and answers TF-IDF ranked
// queries against it, either one-shot from the command line or over HTTP.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/kansindexer/ftsearch/internal/engine"
	"github.com/kansindexer/ftsearch/internal/httpapi"
)

const version = "0.1.0"

const usage = `
ftsearch indexes files and answers ranked full-text queries.

Usage:

  ftsearch index <path> [-index DIR] [-batch N] [-workers N] [-hidden] [-skip NAME]... [-logfile]
  ftsearch query <text> [-index DIR] [-k N] [-scores] [-output FILE]
  ftsearch serve [-index DIR] [-host HOST] [-port PORT] [-logfile]

  ftsearch -help
  ftsearch -version

Defaults:

  -index DIR    $HOME/.indexer
  -batch N      100
  -k N          20
  -host HOST    0.0.0.0
  -port PORT    8765
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return 1
	}

	switch args[0] {
	case "-help", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
		return 0
	case "-version", "--version", "version":
		fmt.Fprintln(os.Stdout, version)
		return 0
	}

	cmd := args[0]
	args = args[1:]

	switch cmd {
	case "index":
		return runIndex(args)
	case "query":
		return runQuery(args)
	case "serve":
		return runServe(args)
	default:
		fmt.Fprintf(os.Stderr, "ftsearch: unrecognized command %q\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		return 1
	}
}

// buildLogger wires stderr output, plus an optional gzip-rotating file
// under indexDir/logs when withFile is set, into a single *engine.Logger.
// The returned closer must be closed (or is a no-op if withFile was false).
func buildLogger(indexDir string, withFile bool) (*engine.Logger, io.Closer, error) {
	if !withFile {
		return engine.NewLogger(os.Stderr), io.NopCloser(nil), nil
	}

	logDir := filepath.Join(indexDir, "logs")
	rotating, err := engine.NewRotatingLogFile(logDir, "ftsearch.log", 0)
	if err != nil {
		return nil, nil, err
	}
	return engine.NewLogger(io.MultiWriter(os.Stderr, rotating)), rotating, nil
}

func defaultIndexDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".indexer"
	}
	return filepath.Join(home, ".indexer")
}

// getStringArg pulls the value following a flag, exiting with a usage
// error when the flag is given with nothing after it.
func getStringArg(args []string, name string) (string, []string) {
	if len(args) < 2 {
		fmt.Fprintf(os.Stderr, "ftsearch: %s is missing\n", name)
		os.Exit(1)
	}
	return args[1], args[1:]
}

func getIntArg(args []string, name string, def int) (int, []string) {
	raw, rest := getStringArg(args, name)
	n, err := strconv.Atoi(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ftsearch: %s (%s) is not an integer\n", name, raw)
		os.Exit(1)
	}
	if n <= 0 {
		return def, rest
	}
	return n, rest
}

func runIndex(args []string) int {
	if len(args) < 1 || strings.HasPrefix(args[0], "-") {
		fmt.Fprintln(os.Stderr, "ftsearch: index requires a path argument")
		return 1
	}
	root := args[0]
	args = args[1:]

	indexDir := defaultIndexDir()
	batchSize := 0
	workers := 0
	includeHidden := false
	useLogFile := false
	var skip []string

	for len(args) > 0 {
		switch args[0] {
		case "-index":
			indexDir, args = getStringArg(args, "-index DIR")
		case "-batch":
			batchSize, args = getIntArg(args, "-batch N", 0)
		case "-workers":
			workers, args = getIntArg(args, "-workers N", 0)
		case "-hidden":
			includeHidden = true
		case "-logfile":
			useLogFile = true
		case "-skip":
			var name string
			name, args = getStringArg(args, "-skip NAME")
			skip = append(skip, name)
		default:
			fmt.Fprintf(os.Stderr, "ftsearch: unrecognized index option %q\n", args[0])
			return 1
		}
		args = args[1:]
	}

	if _, err := os.Stat(root); err != nil {
		fmt.Fprintf(os.Stderr, "ftsearch: %v\n", err)
		return 1
	}

	cfg := engine.Config{
		RootPath:      root,
		IndexDir:      indexDir,
		IncludeHidden: includeHidden,
		SkipPaths:     skip,
		BatchSize:     batchSize,
		WorkerCount:   workers,
	}

	log, closer, err := buildLogger(indexDir, useLogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ftsearch: %v\n", err)
		return 2
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w := engine.NewWriter(cfg, log)
	if _, err := w.Run(ctx); err != nil {
		log.Errorf("%v", err)
		return 2
	}
	return 0
}

func runQuery(args []string) int {
	if len(args) < 1 || strings.HasPrefix(args[0], "-") {
		fmt.Fprintln(os.Stderr, "ftsearch: query requires a query text argument")
		return 1
	}
	text := args[0]
	args = args[1:]

	indexDir := defaultIndexDir()
	k := httpapi.DefaultK
	showScores := false
	outputPath := ""

	for len(args) > 0 {
		switch args[0] {
		case "-index":
			indexDir, args = getStringArg(args, "-index DIR")
		case "-k":
			k, args = getIntArg(args, "-k N", httpapi.DefaultK)
		case "-scores":
			showScores = true
		case "-output":
			outputPath, args = getStringArg(args, "-output F")
		default:
			fmt.Fprintf(os.Stderr, "ftsearch: unrecognized query option %q\n", args[0])
			return 1
		}
		args = args[1:]
	}

	log := engine.NewLogger(os.Stderr)

	idx, err := engine.OpenIndex(indexDir)
	if err != nil {
		log.Errorf("%v", err)
		return 2
	}
	defer idx.Close()

	results, err := idx.Query(text, k)
	if err != nil {
		log.Errorf("%v", err)
		return 2
	}

	out := os.Stdout
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			log.Errorf("%v", err)
			return 2
		}
		defer f.Close()
		out = f
	}

	for _, r := range results {
		if showScores {
			fmt.Fprintf(out, "%s\t%g\n", r.Path, r.Score)
		} else {
			fmt.Fprintln(out, r.Path)
		}
	}
	return 0
}

func runServe(args []string) int {
	indexDir := defaultIndexDir()
	host := "0.0.0.0"
	port := "8765"
	useLogFile := false

	for len(args) > 0 {
		switch args[0] {
		case "-index":
			indexDir, args = getStringArg(args, "-index DIR")
		case "-host":
			host, args = getStringArg(args, "-host HOST")
		case "-port":
			port, args = getStringArg(args, "-port PORT")
		case "-logfile":
			useLogFile = true
		default:
			fmt.Fprintf(os.Stderr, "ftsearch: unrecognized serve option %q\n", args[0])
			return 1
		}
		args = args[1:]
	}

	log, closer, err := buildLogger(indexDir, useLogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ftsearch: %v\n", err)
		return 2
	}
	defer closer.Close()

	idx, err := engine.OpenIndex(indexDir)
	if err != nil {
		log.Errorf("%v", err)
		return 2
	}
	defer idx.Close()

	srv := httpapi.New(idx, log)
	log.Infof("serving %d documents on %s:%s", idx.DocumentCount(), host, port)
	if err := srv.ListenAndServe(host + ":" + port); err != nil {
		log.Errorf("%v", err)
		return 2
	}
	return 0
}
