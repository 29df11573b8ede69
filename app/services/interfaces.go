package services

import (
	"context"

	"dblog/app/chain"
	"dblog/app/models"
	"dblog/app/repositories"
)

// Signer submits registry intents on behalf of the current account.
type Signer interface {
	CurrentAddress() (models.Address, bool)
	Submit(ctx context.Context, intent chain.Intent) (string, error)
	WaitForConfirmation(ctx context.Context, txHash string) (*chain.Receipt, error)
}

// RegistryReader is the read-only view of the registry the client needs.
type RegistryReader = repositories.PostReader
