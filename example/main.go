// Command example runs the console against a simulated winding machine with
// the demo site embedded in the binary.
//
//	go run ./example
package main

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/etymology/winderconsole"
	"github.com/etymology/winderconsole/example/machine"
)

//go:embed site/*
var siteFiles embed.FS

const machineAddr = "localhost:9999"

func main() {
	go func() {
		if err := http.ListenAndServe(machineAddr, machine.New("winder", nil)); err != nil {
			slog.Error("mock machine error", "error", err)
		}
	}()
	time.Sleep(100 * time.Millisecond)

	site, err := fs.Sub(siteFiles, "site")
	if err != nil {
		slog.Error("failed to open embedded site", "error", err)
		os.Exit(1)
	}

	console, err := winderconsole.New(
		winderconsole.WithTitle("Winder Console Demo"),
		winderconsole.WithRemoteURL("http://"+machineAddr+"/"),
		winderconsole.WithAssetFS(site),
		winderconsole.WithStartPage("APA", "main"),
		winderconsole.WithBaseStylesheets("Desktop.css"),
		winderconsole.WithCommonModules("Remote"),
		winderconsole.WithCommonSubPages(winderconsole.SubPage{Name: "MotorStatus", Slot: "motorStatus"}),
		winderconsole.WithPort(8080),
	)
	if err != nil {
		slog.Error("failed to create console", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  Winder Console Demo")
	fmt.Println()
	fmt.Println("  Open http://localhost:8080 in your browser")
	fmt.Println("  Pages: APA (winding), Setup (speed and tension)")
	fmt.Println("  Login password: winder")
	fmt.Println()
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := console.Start(ctx); err != nil {
		slog.Error("console error", "error", err)
		os.Exit(1)
	}
}
