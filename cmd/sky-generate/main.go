// Command sky-generate fills a table directory with randomly
// generated path files, for exercising sky-query and the storage layer
// without a real event source. The data distribution itself is
// unspecified (spec.md Non-goals) — only the flag surface is.
package main

import (
	"fmt"
	"math/rand/v2"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/skydb/sky/event"
	"github.com/skydb/sky/path"
	"github.com/skydb/sky/skytable"
)

var log = logrus.WithField("cmd", "sky-generate")

type generateFlags struct {
	tableName     string
	pathCount     int
	avgEventCount int
	actionCount   int
	seed          int64
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &generateFlags{}
	cmd := &cobra.Command{
		Use:   "sky-generate [flags] DB_PATH",
		Short: "Generate a table of random path files for exercising Sky",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], flags)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&flags.tableName, "table-name", "t", "default", "table name (subdirectory of DB_PATH)")
	f.IntVarP(&flags.pathCount, "path-count", "p", 100, "number of object paths to generate")
	f.IntVarP(&flags.avgEventCount, "avg-event-count", "e", 10, "average events per path")
	f.IntVarP(&flags.actionCount, "action-count", "a", 5, "number of distinct action ids to draw from")
	f.Int64VarP(&flags.seed, "seed", "s", 0, "PRNG seed, for reproducible output")
	return cmd
}

func run(dbPath string, flags *generateFlags) error {
	if flags.pathCount <= 0 {
		return fmt.Errorf("sky-generate: --path-count must be positive, got %d", flags.pathCount)
	}
	tableDir := dbPath + string(os.PathSeparator) + flags.tableName
	w, err := skytable.NewWriter(tableDir)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewPCG(uint64(flags.seed), uint64(flags.seed)>>1|1))
	for objectID := 1; objectID <= flags.pathCount; objectID++ {
		p := path.New(uint64(objectID))
		eventCount := 1 + rng.IntN(2*flags.avgEventCount)
		ts := int64(0)
		for i := 0; i < eventCount; i++ {
			ts += int64(1 + rng.IntN(1000))
			e := &event.Event{
				ObjectID: uint64(objectID),
				Timestamp: ts,
				ActionID:  uint32(1 + rng.IntN(flags.actionCount)),
			}
			if err := p.AddEvent(e); err != nil {
				return err
			}
		}
		if err := w.Append(p); err != nil {
			return err
		}
	}
	log.WithFields(logrus.Fields{"table": flags.tableName, "paths": flags.pathCount}).Info("sky-generate: table written")
	return nil
}
