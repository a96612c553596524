package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rivo/tview"

	"github.com/jaminalder/timetravel-tic-tac-toe/internal/config"
	"github.com/jaminalder/timetravel-tic-tac-toe/internal/logger"
	"github.com/jaminalder/timetravel-tic-tac-toe/internal/tui"
)

func main() {
	configPath := flag.String("config", "./config.yml", "path to the yaml config file")
	logPath := flag.String("log", "", "write logs to this file (the terminal belongs to the game)")
	flag.Parse()

	conf := config.MustLoad(*configPath)

	var out io.Writer = io.Discard
	if *logPath != "" {
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}
	log := logger.Init(conf.Level(), out)

	application := tview.NewApplication().EnableMouse(true)
	ui := tui.New(application, log)
	application.SetInputCapture(ui.HandleKey)

	if err := application.SetRoot(ui.Root(), true).Run(); err != nil {
		log.Error("tui stopped", "error", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
