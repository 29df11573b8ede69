package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"dblog/app/config"
	"dblog/app/logging"
	"dblog/service"

	"go.uber.org/zap"
)

const CliVersion = "1.0.0"

var exit = os.Exit

func main() {
	RealMain()
}

// RealMain dispatches the command line. Tests call it with os.Args set.
func RealMain() {
	if len(os.Args) < 2 {
		printHelp()
		exit(1)
		return
	}

	cmd := strings.ToLower(os.Args[1])
	args := os.Args[2:]
	switch cmd {
	case "help":
		printHelp()
	case "version":
		fmt.Printf("dblog version %s\n", CliVersion)
	case "serve":
		exit(withConfig(serve))
	case "index":
		exit(withConfig(index))
	case "keygen":
		exit(withConfig(func(ctx context.Context, cfg *config.Config, logger *zap.Logger) int {
			return service.HandleKeygen(ctx, cfg, logger, args)
		}))
	case "post":
		exit(withConfig(func(ctx context.Context, cfg *config.Config, logger *zap.Logger) int {
			return service.HandlePostCommand(ctx, cfg, logger, args)
		}))
	case "db":
		exit(withConfig(func(_ context.Context, cfg *config.Config, _ *zap.Logger) int {
			return service.HandleDBCommand(cfg, args)
		}))
	default:
		fmt.Printf("Unknown command: %s\n\n", os.Args[1])
		printHelp()
		exit(1)
	}
}

func printHelp() {
	helpText := `Usage: dblog <command> [options]
Commands:
  help                           Display this help message.
  version                        Show version information.
  keygen [--prefix <hex>] [--workers <n>] [--out <file>]
                                 Create the wallet key file, optionally with a vanity address.
  serve                          Run the node with its RPC, the blog API and an indexer.
  index                          Follow a node's event log into Postgres.
  post <command>                 List, read, create and update posts on a node.
  db <command>                   Manage the node database (init, clean, backup, restore).

Configuration is read from the environment and an optional .env file.
`
	fmt.Println(helpText)
}

// withConfig loads the configuration and logger, then runs fn until SIGINT or
// SIGTERM. It returns fn's exit code.
func withConfig(fn func(ctx context.Context, cfg *config.Config, logger *zap.Logger) int) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		return 1
	}
	logger, err := logging.New(cfg.Env)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return fn(ctx, cfg, logger)
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) int {
	if err := service.RunNode(ctx, cfg, logger, nil); err != nil {
		logger.Error("node stopped", zap.Error(err))
		return 1
	}
	return 0
}

func index(ctx context.Context, cfg *config.Config, logger *zap.Logger) int {
	if err := service.RunIndexer(ctx, cfg, logger); err != nil {
		logger.Error("indexer stopped", zap.Error(err))
		return 1
	}
	return 0
}
