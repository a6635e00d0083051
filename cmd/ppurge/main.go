// ppurge - parallel walk a file system and quarantine/remove old files.
//
// (c) 2024- pwalktools authors
//
// Licensing Terms: GPLv2
package main

import (
	"fmt"
	"os"
	"path"
	"time"

	flag "github.com/opencoff/pflag"

	"github.com/opencoff/pwalktools/internal/purge"
	"github.com/opencoff/pwalktools/internal/rlog"
)

var z = path.Base(os.Args[0])

const version = "1.0.0"

func main() {
	var help, showVersion bool
	var purgeDays, depth, concurrency int

	fs := flag.NewFlagSet(z, flag.ExitOnError)
	fs.BoolVarP(&help, "help", "h", false, "Show help and exit")
	fs.BoolVarP(&showVersion, "version", "v", false, "Show version and exit")
	fs.IntVarP(&purgeDays, "purge-days", "", 0, "Purge files with mtime older than `N` days (1..32000)")
	fs.IntVarP(&depth, "depth", "", 0, "Reserved; unused")
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

	if purgeDays < 1 || purgeDays > 32000 {
		die("--purge-days must be a positive integer between 1 and 32000")
	}

	now := time.Now()
	log, logName, err := rlog.NewTimestampedFile("ppurge", now)
	if err != nil {
		die("%s", err)
	}
	defer log.Close()
	fmt.Fprintf(os.Stderr, "%s: logging to %s\n", z, logName)

	purgeThreshold := now.Add(-time.Duration(purgeDays) * 24 * time.Hour)
	removeThreshold := now.Add(-time.Duration(2*purgeDays) * 24 * time.Hour)

	cfg := &purge.Config{
		MaxThreads:      concurrency,
		PurgeThreshold:  purgeThreshold,
		RemoveThreshold: removeThreshold,
		Out:             os.Stdout,
		ErrLog:          log.Errorf,
	}

	eng := purge.New(cfg)
	if err := eng.Run(root); err != nil {
		die("%s", err)
	}
}

func usage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, "Usage: %s --purge-days N [options] <root>\n", z)
	fs.PrintDefaults()
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s: %s\n", z, fmt.Sprintf(format, args...))
	os.Exit(1)
}
