package service

import (
	"context"
	"flag"
	"fmt"
	"os"

	"dblog/app/config"
	"dblog/app/wallet"

	"go.uber.org/zap"
)

// HandleKeygen creates the wallet key file, optionally searching for an
// address with a vanity prefix.
func HandleKeygen(ctx context.Context, cfg *config.Config, logger *zap.Logger, args []string) int {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)
	prefix := fs.String("prefix", "", "hex prefix the address should start with")
	workers := fs.Int("workers", 0, "number of search goroutines (default: number of CPUs)")
	out := fs.String("out", cfg.Client.KeyFile, "key file to write")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	if *prefix != "" {
		fmt.Printf("Searching for an address starting with 0x%s...\n", *prefix)
	}
	res, err := wallet.FindVanityKey(ctx, *prefix, *workers, logger.Named("vanity"))
	if err != nil {
		fmt.Printf("Key generation failed: %v\n", err)
		return 1
	}

	if err := wallet.SaveKeyFile(*out, res.Key); err != nil {
		fmt.Printf("Failed to save key: %v\n", err)
		return 1
	}
	fmt.Printf("Address: %s\n", res.Address)
	fmt.Printf("Attempts: %d\n", res.Attempts)
	fmt.Printf("Key saved to %s\n", *out)
	return 0
}
