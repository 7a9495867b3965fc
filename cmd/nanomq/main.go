// Command nanomq runs the broker, dispatching into the start/stop/
// restart surface internal/cli implements.
package main

import (
	"fmt"
	"os"

	"github.com/nanomq-go/nanomq/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
