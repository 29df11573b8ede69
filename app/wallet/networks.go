package wallet

import (
	"context"
	"errors"

	"dblog/app/chain"
	"dblog/app/models"
)

var ErrUnknownNetwork = errors.New("unknown network")

// Backend is a node the wallet can submit transactions to.
type Backend interface {
	SendTransaction(ctx context.Context, tx *chain.Transaction) (string, error)
	PendingNonce(ctx context.Context, addr models.Address) (uint64, error)
	WaitForReceipt(ctx context.Context, hash string) (*chain.Receipt, error)
}

// Dialer connects to the backend of a network.
type Dialer func(n Network) (Backend, error)

// Network describes a chain the wallet can switch to.
type Network struct {
	ChainID  uint64 `json:"chainId"`
	Name     string `json:"name"`
	RPCURL   string `json:"rpcUrl"`
	Explorer string `json:"explorer,omitempty"`
}

const (
	LocalChainID   uint64 = 1337
	MumbaiChainID  uint64 = 80001
	PolygonChainID uint64 = 137
)

// DefaultNetworks returns the local development chain and the two Polygon networks.
func DefaultNetworks() []Network {
	return []Network{
		{ChainID: LocalChainID, Name: "Localhost", RPCURL: "http://localhost:8545"},
		{ChainID: MumbaiChainID, Name: "Polygon Mumbai", RPCURL: "https://rpc-mumbai.matic.today", Explorer: "https://mumbai.polygonscan.com/"},
		{ChainID: PolygonChainID, Name: "Polygon Mainnet", RPCURL: "https://polygon-rpc.com/", Explorer: "https://polygonscan.com/"},
	}
}

// FixedBackend returns a Dialer that hands out the same backend for every network.
func FixedBackend(b Backend) Dialer {
	return func(Network) (Backend, error) {
		return b, nil
	}
}
