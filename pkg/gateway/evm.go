// Package gateway executes wallet operations for the tipper against the
// configured EVM chains.
package gateway

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tipx/tipx/pkg/config"
	"github.com/tipx/tipx/pkg/ethereum/contracts"
	"github.com/tipx/tipx/pkg/tip"
)

const (
	usdcDecimals       = 6
	approveGasLimit    = 100_000
	contributeGasLimit = 300_000
)

type chainBinding struct {
	cfg    config.ChainConfig
	client *ethclient.Client
	usdc   *contracts.ERC20
}

// EVMGateway holds one wallet across all configured chains, one of which is
// the settlement chain carrying the vault.
type EVMGateway struct {
	chains          map[string]*chainBinding
	settlementChain string
	vaultAddress    common.Address
	vault           *contracts.CreatorVault
	privateKey      *ecdsa.PrivateKey
	address         common.Address
	logger          *zap.Logger

	active string
}

// NewEVMGateway dials every configured chain and binds the vault on the
// settlement chain. The settlement chain starts active.
func NewEVMGateway(cfg *config.TipperConfig, logger *zap.Logger) (*EVMGateway, error) {
	privateKey, err := crypto.HexToECDSA(cfg.WalletKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet private key: %w", err)
	}

	g := &EVMGateway{
		chains:          make(map[string]*chainBinding, len(cfg.Chains)),
		settlementChain: cfg.SettlementChain,
		vaultAddress:    common.HexToAddress(cfg.VaultContract),
		privateKey:      privateKey,
		address:         crypto.PubkeyToAddress(privateKey.PublicKey),
		logger:          logger,
		active:          cfg.SettlementChain,
	}

	for name, chainCfg := range cfg.Chains {
		client, err := ethclient.Dial(chainCfg.RPCURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to chain %s: %w", name, err)
		}
		usdc, err := contracts.NewERC20(common.HexToAddress(chainCfg.USDCContract), client)
		if err != nil {
			return nil, fmt.Errorf("failed to bind USDC on chain %s: %w", name, err)
		}
		g.chains[name] = &chainBinding{cfg: chainCfg, client: client, usdc: usdc}
	}

	settlement, ok := g.chains[cfg.SettlementChain]
	if !ok {
		return nil, fmt.Errorf("settlement chain %q is not configured", cfg.SettlementChain)
	}
	vault, err := contracts.NewCreatorVault(g.vaultAddress, settlement.client)
	if err != nil {
		return nil, fmt.Errorf("failed to bind vault contract: %w", err)
	}
	g.vault = vault

	logger.Info("Gateway connected",
		zap.String("wallet", g.address.Hex()),
		zap.String("settlement_chain", cfg.SettlementChain),
		zap.Int("chains", len(g.chains)))

	return g, nil
}

// Close closes every chain connection.
func (g *EVMGateway) Close() {
	for _, b := range g.chains {
		b.client.Close()
	}
}

// Address returns the wallet address.
func (g *EVMGateway) Address() string {
	return g.address.Hex()
}

// ActiveChain returns the name of the currently selected chain.
func (g *EVMGateway) ActiveChain() string {
	return g.active
}

// SwitchChain selects another configured chain, verifying its chain id.
func (g *EVMGateway) SwitchChain(ctx context.Context, chain string) error {
	b, ok := g.chains[chain]
	if !ok {
		return fmt.Errorf("chain %q is not configured", chain)
	}

	chainID, err := b.client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("failed to query chain id of %s: %w", chain, err)
	}
	if chainID.Int64() != b.cfg.ChainID {
		return fmt.Errorf("chain %s reports id %d, expected %d", chain, chainID.Int64(), b.cfg.ChainID)
	}

	g.active = chain
	g.logger.Debug("Switched chain", zap.String("chain", chain))
	return nil
}

// USDCBalance reads the wallet's USDC balance on the active chain.
func (g *EVMGateway) USDCBalance(ctx context.Context) (decimal.Decimal, error) {
	b := g.chains[g.active]
	balance, err := b.usdc.BalanceOf(&bind.CallOpts{Context: ctx}, g.address)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read USDC balance on %s: %w", g.active, err)
	}
	return decimal.NewFromBigInt(balance, -usdcDecimals), nil
}

// Allowance reads the vault's USDC allowance on the settlement chain.
func (g *EVMGateway) Allowance(ctx context.Context) (decimal.Decimal, error) {
	b := g.chains[g.settlementChain]
	allowance, err := b.usdc.Allowance(&bind.CallOpts{Context: ctx}, g.address, g.vaultAddress)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read vault allowance: %w", err)
	}
	return decimal.NewFromBigInt(allowance, -usdcDecimals), nil
}

// Approve raises the vault's USDC allowance and waits for the receipt.
func (g *EVMGateway) Approve(ctx context.Context, amount decimal.Decimal) (string, error) {
	b := g.chains[g.settlementChain]

	auth, err := g.transactor(ctx, b, approveGasLimit)
	if err != nil {
		return "", err
	}

	tx, err := b.usdc.Approve(auth, g.vaultAddress, usdcUnits(amount))
	if err != nil {
		return "", fmt.Errorf("failed to submit approval: %w", err)
	}

	receipt, err := bind.WaitMined(ctx, b.client, tx)
	if err != nil {
		return "", fmt.Errorf("failed to wait for approval receipt: %w", err)
	}
	if receipt.Status != 1 {
		return "", fmt.Errorf("approval reverted: %s", tx.Hash().Hex())
	}

	g.logger.Info("Vault allowance approved",
		zap.String("tx_hash", tx.Hash().Hex()),
		zap.String("amount", amount.String()))
	return tx.Hash().Hex(), nil
}

// Contribute calls the vault's contribute on the settlement chain and waits
// for the receipt.
func (g *EVMGateway) Contribute(ctx context.Context, creator string, amount decimal.Decimal) (*tip.TxOutcome, error) {
	b := g.chains[g.settlementChain]

	auth, err := g.transactor(ctx, b, contributeGasLimit)
	if err != nil {
		return nil, err
	}

	tx, err := g.vault.Contribute(auth, common.HexToAddress(creator), usdcUnits(amount))
	if err != nil {
		return nil, fmt.Errorf("failed to submit contribution: %w", err)
	}

	receipt, err := bind.WaitMined(ctx, b.client, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to wait for contribution receipt: %w", err)
	}

	return &tip.TxOutcome{
		Hash:     tx.Hash().Hex(),
		Reverted: receipt.Status != 1,
	}, nil
}

func (g *EVMGateway) transactor(ctx context.Context, b *chainBinding, gasLimit uint64) (*bind.TransactOpts, error) {
	auth, err := bind.NewKeyedTransactorWithChainID(g.privateKey, big.NewInt(b.cfg.ChainID))
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}

	nonce, err := b.client.PendingNonceAt(ctx, g.address)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	auth.Nonce = big.NewInt(int64(nonce))
	auth.GasLimit = gasLimit
	auth.Context = ctx
	return auth, nil
}

func usdcUnits(d decimal.Decimal) *big.Int {
	return d.Round(usdcDecimals).Shift(usdcDecimals).BigInt()
}
