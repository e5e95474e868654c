// Standalone simulated machine for trying the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockmachine
//
// Then in another terminal:
//
//	go run ./cmd/winderconsole serve -c example/config.yaml
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/etymology/winderconsole/example/machine"
)

func main() {
	addr := flag.String("addr", ":9999", "listen address")
	password := flag.String("password", "winder", "login password")
	flag.Parse()

	fmt.Printf("Mock winding machine listening on %s\n", *addr)
	fmt.Println("Press Ctrl+C to stop")

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := http.ListenAndServe(*addr, machine.New(*password, logger)); err != nil {
		slog.Error("mock machine error", "error", err)
		os.Exit(1)
	}
}
