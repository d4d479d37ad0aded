// Command api starts the HTTP server; it is the container entrypoint and
// equivalent to running the root binary with "serve".
package main

import (
	"fmt"
	"os"

	"github.com/ovaphlow/pitchfork/service-identity/internal/cli"
)

func main() {
	args := append([]string{"serve"}, os.Args[1:]...)
	if err := cli.ExecuteArgs(args); err != nil {
		fmt.Fprintf(os.Stderr, "api: %v\n", err)
		os.Exit(1)
	}
}
