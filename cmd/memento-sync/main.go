// Command memento-sync runs the knowledge-graph sync engine's CLI: full and
// incremental repository syncs, operation status/statistics, and graph
// search, all backed by the coordinator, KGS, and temporal packages.
package main

import (
	"fmt"
	"os"

	"github.com/evalgo/memento/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
