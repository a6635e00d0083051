// pwalk - parallel filesystem meta-data report, with an optional
// conditional chown ride-along.
//
// (c) 2024- pwalktools authors
//
// Licensing Terms: GPLv2
package main

import (
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"

	flag "github.com/opencoff/pflag"

	"github.com/opencoff/pwalktools/internal/action"
	"github.com/opencoff/pwalktools/internal/exclude"
	"github.com/opencoff/pwalktools/internal/rlog"
	"github.com/opencoff/pwalktools/internal/walk"
)

var z = path.Base(os.Args[0])

const version = "1.0.0"

const csvHeader = "ino,pino,depth,name,ext,uid,gid,size,dev,blocks,nlink,mode,atime,mtime,ctime,file_count,dir_size"

func main() {
	var nosnap, oneFS, header, help, showVersion bool
	var depth, concurrency int
	var excludeFile, chownFrom, chownTo string

	fs := flag.NewFlagSet(z, flag.ExitOnError)
	fs.BoolVarP(&help, "help", "h", false, "Show help and exit")
	fs.BoolVarP(&showVersion, "version", "v", false, "Show version and exit")
	fs.BoolVarP(&nosnap, "nosnap", "", false, "Do not descend into .snapshot directories")
	fs.IntVarP(&depth, "depth", "", 0, "Suppress descent past `N` levels (0: unlimited)")
	fs.StringVarP(&excludeFile, "exclude", "", "", "Read excluded paths from `FILE`")
	fs.BoolVarP(&oneFS, "one-file-system", "x", false, "Do not cross file system boundaries")
	fs.BoolVarP(&header, "header", "", false, "Emit a CSV header line before the first record")
	fs.StringVarP(&chownFrom, "chown-from", "", "", "Conditionally chown files owned by `UID`")
	fs.StringVarP(&chownTo, "chown-to", "", "", "Target `UID:GID` for --chown-from")
	fs.IntVarP(&concurrency, "concurrency", "c", 32, "Use up to `N` concurrent directory workers")
	fs.SetOutput(os.Stderr)

	if err := fs.Parse(os.Args[1:]); err != nil {
		die("%s", err)
	}

	if help {
		usage(fs)
		os.Exit(0)
	}
	if showVersion {
		fmt.Printf("%s version %s\n", z, version)
		os.Exit(0)
	}

	args := fs.Args()
	if len(args) != 1 {
		usage(fs)
		os.Exit(1)
	}
	root := args[0]

	log, err := rlog.NewStderr(z)
	if err != nil {
		die("%s", err)
	}
	defer log.Close()

	excl := exclude.New()
	if excludeFile != "" {
		excl, err = exclude.Load(excludeFile)
		if err != nil {
			die("%s", err)
		}
	}

	totals := &action.Totals{}
	metaCfg := &action.MetaConfig{
		Out:    os.Stdout,
		Totals: totals,
		ErrLog: log.Errorf,
	}
	if chownFrom != "" {
		from, err := strconv.ParseUint(chownFrom, 10, 32)
		if err != nil {
			die("--chown-from: %s", err)
		}
		uid, gid, err := parseUIDGID(chownTo)
		if err != nil {
			die("--chown-to: %s", err)
		}
		metaCfg.ChownEnabled = true
		metaCfg.ChownFrom = uint32(from)
		metaCfg.ChownTo = uid
		metaCfg.ChownGroup = gid
	}

	if header {
		fmt.Println(csvHeader)
	}

	cfg := &walk.Config{
		MaxThreads:      concurrency,
		IgnoreSnapshots: nosnap,
		DepthLimit:      depth,
		OneFS:           oneFS,
		Excludes:        excl,
		Action:          action.NewMeta(metaCfg),
		ErrLog:          log.Errorf,
	}

	eng := walk.New(cfg)
	if err := eng.Run(root); err != nil {
		die("%s", err)
	}
	fmt.Fprintf(os.Stderr, "%s: %s\n", z, totals)
}

func parseUIDGID(s string) (uid, gid uint32, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected UID:GID, got %q", s)
	}
	u, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return 0, 0, err
	}
	g, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return 0, 0, err
	}
	return uint32(u), uint32(g), nil
}

func usage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, "Usage: %s [options] <root>\n", z)
	fs.PrintDefaults()
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s: %s\n", z, fmt.Sprintf(format, args...))
	os.Exit(1)
}
