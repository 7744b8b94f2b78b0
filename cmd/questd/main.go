package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lawnchairsociety/questgraph/internal/config"
	"github.com/lawnchairsociety/questgraph/internal/logger"
)

const usage = `usage: questd [flags] <command> [args]

commands:
  show                   print every quest with its state
  rebuild                rebuild the progress table from the graph
  set-all <state>        force every quest to one state
  unlock <id>            make a quest available
  activate <id>          start a quest
  complete <id>          complete a quest
  fail <id>              fail a quest
  delete                 empty the save slot (its backup is kept)
  new-game               reset all progress and save it
  serve                  run the event feed and read commands from stdin
  watch [url]            print events from a running feed

flags:
`

func main() {
	configFile := flag.String("config", "data/questgraph.yaml", "Path to config YAML file")
	questsPath := flag.String("quests", "", "Quests YAML file or directory (overrides config)")
	slot := flag.String("slot", "", "Save slot (default from config)")
	fastForward := flag.Bool("ff", false, "Mark quest changes as fast-forwarded")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *questsPath != "" {
		cfg.QuestsPath = *questsPath
	}
	if *slot == "" {
		*slot = cfg.Slot
	}

	if err := logger.Initialize(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize logging: %v\n", err)
		os.Exit(1)
	}

	if flag.Arg(0) == "watch" {
		url := feedURL(cfg.Feed.Address)
		if flag.NArg() > 1 {
			url = flag.Arg(1)
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := watch(ctx, url, os.Stdout); err != nil {
			logger.Error("Watch failed", "url", url, "error", err)
			stop()
			os.Exit(1)
		}
		return
	}

	a, err := newApp(cfg)
	if err != nil {
		logger.Error("Startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()
	a.fastForward = *fastForward

	a.load(*slot)

	if flag.Arg(0) == "serve" {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger.Info("Serving quest progress", "slot", *slot, "feed", cfg.Feed.Address)
		if err := a.serve(ctx, *slot, os.Stdin, os.Stdout); err != nil {
			logger.Error("Serve failed", "error", err)
			a.Close()
			os.Exit(1)
		}
		logger.Info("Stopped")
		return
	}

	if err := a.exec(flag.Args(), *slot, os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, err)
			flag.Usage()
			a.Close()
			os.Exit(2)
		}
		logger.Error("Command failed", "command", flag.Arg(0), "error", err)
		a.Close()
		os.Exit(1)
	}
}
