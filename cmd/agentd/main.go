// Command agentd runs the supervision and reliability core of the
// agent daemon: single-instance lock, component supervision, health
// telemetry, and the pairing gateway.
package main

import (
	"fmt"
	"os"

	"github.com/fenwick-labs/agentd/cmd/agentd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
