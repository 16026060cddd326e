// Command buscluster detects bus clusters in telemetry snapshots.
package main

import (
	"fmt"
	"os"

	"github.com/banshee-data/buscluster/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
