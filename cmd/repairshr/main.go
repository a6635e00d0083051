// repairshr - parallel permission repair for shared folders.
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

	"github.com/opencoff/pwalktools/internal/exclude"
	"github.com/opencoff/pwalktools/internal/repair"
	"github.com/opencoff/pwalktools/internal/rlog"
)

var z = path.Base(os.Args[0])

const version = "1.0.0"

// excludeList accumulates repeated --exclude PATH flags into a slice,
// following pflag.Value's Set/String/Type contract.
type excludeList []string

func (e *excludeList) String() string { return strings.Join(*e, ",") }
func (e *excludeList) Set(v string) error {
	*e = append(*e, v)
	return nil
}
func (e *excludeList) Type() string { return "stringList" }

func main() {
	var dryRun, nosnap, oneFS, forceGroupWritable, help, showVersion bool
	var threads int
	var changeGids string
	var excludePaths excludeList

	fs := flag.NewFlagSet(z, flag.ExitOnError)
	fs.BoolVarP(&help, "help", "h", false, "Show help and exit")
	fs.BoolVarP(&showVersion, "version", "v", false, "Show version and exit")
	fs.BoolVarP(&dryRun, "dry-run", "", false, "Show changes without making them")
	fs.BoolVarP(&nosnap, "nosnap", "", false, "Do not descend into .snapshot directories")
	fs.VarP(&excludePaths, "exclude", "", "Exclude `PATH` (repeatable)")
	fs.StringVarP(&changeGids, "change-gids", "", "", "Comma-separated group IDs to treat as private")
	fs.BoolVarP(&forceGroupWritable, "force-group-writable", "", false, "Make entries group read/write(+x)")
	fs.IntVarP(&threads, "threads", "", 32, "Set maximum number of concurrent directory workers")
	fs.BoolVarP(&oneFS, "one-file-system", "x", false, "Do not cross file system boundaries")
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
	root := strings.TrimRight(args[0], "/")

	log, err := rlog.NewStderr(z)
	if err != nil {
		die("%s", err)
	}
	defer log.Close()

	excl := exclude.New()
	for _, p := range excludePaths {
		excl.Add(p)
	}

	changeGroups := map[uint32]bool{}
	if changeGids != "" {
		for _, tok := range strings.Split(changeGids, ",") {
			tok = strings.TrimSpace(tok)
			if tok == "" {
				continue
			}
			gid, err := strconv.ParseUint(tok, 10, 32)
			if err != nil {
				die("--change-gids: %s", err)
			}
			changeGroups[uint32(gid)] = true
		}
	}

	if dryRun {
		fmt.Println("Dry run mode: no changes will be made to the file system")
	}

	cfg := &repair.Config{
		MaxThreads:         threads,
		IgnoreSnapshots:    nosnap,
		OneFS:              oneFS,
		DryRun:             dryRun,
		ForceGroupWritable: forceGroupWritable,
		ChangeGroups:       changeGroups,
		Excludes:           excl,
		Log:                log,
	}

	eng := repair.New(cfg)
	if err := eng.Run(root); err != nil {
		die("%s", err)
	}
}

func usage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, "Usage: %s [options] <root>\n", z)
	fs.PrintDefaults()
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s: %s\n", z, fmt.Sprintf(format, args...))
	os.Exit(1)
}
