// Command sky-query compiles a QIP source file and runs it against
// every table directory found under a database path, printing each
// result as a decoded Go value. It supplements spec.md's CLI surface —
// QIP needs some way to be exercised outside of tests.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/skydb/sky/qip"
	"github.com/skydb/sky/skytable"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var entryFunc string
	var dump bool
	cmd := &cobra.Command{
		Use:   "sky-query [flags] DB_PATH QUERY_FILE",
		Short: "Compile and run a QIP query against every table in a database directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args[0], args[1], entryFunc, dump)
		},
	}
	cmd.Flags().StringVar(&entryFunc, "entry", "main", "name of the top-level function to run")
	cmd.Flags().BoolVar(&dump, "dump", false, "print the compiled instruction stream instead of running it")
	return cmd
}

func run(cmd *cobra.Command, dbPath, queryPath, entryFunc string, dump bool) error {
	src, err := os.ReadFile(queryPath)
	if err != nil {
		return err
	}
	compiled, errs := qip.Compile(string(src), entryFunc)
	if len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(cmd.ErrOrStderr(), e)
		}
		return fmt.Errorf("sky-query: %d compile error(s)", len(errs))
	}
	if dump {
		fmt.Fprint(cmd.OutOrStdout(), compiled.Dump())
		return nil
	}

	tableDirs, err := os.ReadDir(dbPath)
	if err != nil {
		return err
	}
	ctx := context.Background()
	for _, entry := range tableDirs {
		if !entry.IsDir() {
			continue
		}
		tbl, err := skytable.Open(dbPath + string(os.PathSeparator) + entry.Name())
		if err != nil {
			return err
		}
		raw, err := tbl.Query(ctx, compiled)
		if closeErr := tbl.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		if err != nil {
			return err
		}
		var decoded interface{}
		if err := msgpack.Unmarshal(raw, &decoded); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", entry.Name(), decoded)
	}
	return nil
}
