// Package ethereum holds the settlement-chain client used by the ledger to
// pay loyalty rewards and reconcile on-chain contributions.
package ethereum

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	goethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tipx/tipx/internal/metrics"
	"github.com/tipx/tipx/pkg/config"
	"github.com/tipx/tipx/pkg/ethereum/contracts"
)

// usdcDecimals is the on-chain precision of USDC.
const usdcDecimals = 6

// Client represents a settlement-chain client bound to the creator vault.
type Client struct {
	config     *config.SettlementConfig
	client     *ethclient.Client
	privateKey *ecdsa.PrivateKey
	address    common.Address
	logger     *zap.Logger

	vaultAddress common.Address
	vault        *contracts.CreatorVault
}

// NewClient creates a new settlement-chain client. The operator key is
// optional; without it the client can read but not distribute.
func NewClient(cfg *config.SettlementConfig, logger *zap.Logger) (*Client, error) {
	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to settlement RPC: %w", err)
	}

	c := &Client{
		config: cfg,
		client: client,
		logger: logger,
	}

	if cfg.OperatorPrivateKey != "" {
		privateKey, err := crypto.HexToECDSA(cfg.OperatorPrivateKey)
		if err != nil {
			return nil, fmt.Errorf("failed to load operator private key: %w", err)
		}
		c.privateKey = privateKey
		c.address = crypto.PubkeyToAddress(privateKey.PublicKey)
	}

	if cfg.VaultContract != "" {
		c.vaultAddress = common.HexToAddress(cfg.VaultContract)
		vault, err := contracts.NewCreatorVault(c.vaultAddress, client)
		if err != nil {
			return nil, fmt.Errorf("failed to load vault contract: %w", err)
		}
		c.vault = vault
	}

	logger.Info("Connected to settlement chain",
		zap.Int64("chain_id", cfg.ChainID),
		zap.String("rpc_url", cfg.RPCURL),
		zap.String("vault_contract", cfg.VaultContract),
		zap.String("operator_address", c.address.Hex()))

	return c, nil
}

// Close closes the underlying RPC connection.
func (c *Client) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

// Enabled reports whether the client can submit loyalty distributions.
func (c *Client) Enabled() bool {
	return c.vault != nil && c.privateKey != nil
}

// GetTransactor returns a transaction signer for the operator account
func (c *Client) GetTransactor(ctx context.Context) (*bind.TransactOpts, error) {
	if c.privateKey == nil {
		return nil, fmt.Errorf("no operator key configured")
	}

	chainID := big.NewInt(c.config.ChainID)

	auth, err := bind.NewKeyedTransactorWithChainID(c.privateKey, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}

	nonce, err := c.client.PendingNonceAt(ctx, c.address)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	auth.Nonce = big.NewInt(int64(nonce))
	auth.GasLimit = c.config.GasLimit
	auth.Context = ctx

	if c.config.MaxGasPrice != "" {
		maxGasPrice := new(big.Int)
		maxGasPrice.SetString(c.config.MaxGasPrice, 10)

		gasPrice, err := c.client.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to suggest gas price: %w", err)
		}

		if gasPrice.Cmp(maxGasPrice) > 0 {
			c.logger.Warn("Suggested gas price exceeds maximum",
				zap.String("suggested", gasPrice.String()),
				zap.String("max", maxGasPrice.String()))
			auth.GasPrice = maxGasPrice
		} else {
			auth.GasPrice = gasPrice
		}
	}

	return auth, nil
}

// DistributeLoyalty submits a loyalty distribution and waits for its receipt.
// Returns the transaction hash on success.
func (c *Client) DistributeLoyalty(
	ctx context.Context,
	patron, creator string,
	cashback, bonus decimal.Decimal,
) (string, error) {
	if !c.Enabled() {
		return "", fmt.Errorf("loyalty distribution is not configured")
	}

	auth, err := c.GetTransactor(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create transactor: %w", err)
	}

	tx, err := c.vault.DistributeLoyalty(auth,
		common.HexToAddress(patron),
		common.HexToAddress(creator),
		usdcUnits(cashback),
		usdcUnits(bonus))
	if err != nil {
		metrics.TransactionsSent.WithLabelValues("distribute_loyalty", "error").Inc()
		return "", fmt.Errorf("failed to submit loyalty distribution: %w", err)
	}

	c.logger.Info("Loyalty distribution submitted",
		zap.String("tx_hash", tx.Hash().Hex()),
		zap.String("patron", patron),
		zap.String("creator", creator),
		zap.String("cashback", cashback.String()),
		zap.String("bonus", bonus.String()))

	waitCtx := ctx
	if c.config.ReceiptTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, c.config.ReceiptTimeout)
		defer cancel()
	}

	receipt, err := bind.WaitMined(waitCtx, c.client, tx)
	if err != nil {
		metrics.TransactionsSent.WithLabelValues("distribute_loyalty", "error").Inc()
		return "", fmt.Errorf("failed to wait for loyalty distribution receipt: %w", err)
	}
	if receipt.Status != 1 {
		metrics.TransactionsSent.WithLabelValues("distribute_loyalty", "reverted").Inc()
		return "", fmt.Errorf("loyalty distribution reverted: %s", tx.Hash().Hex())
	}

	metrics.TransactionsSent.WithLabelValues("distribute_loyalty", "success").Inc()
	return tx.Hash().Hex(), nil
}

// VaultBalance returns the creator's escrowed USDC balance.
func (c *Client) VaultBalance(ctx context.Context, creator string) (decimal.Decimal, error) {
	if c.vault == nil {
		return decimal.Zero, fmt.Errorf("no vault contract configured")
	}

	balance, err := c.vault.VaultBalance(&bind.CallOpts{Context: ctx}, common.HexToAddress(creator))
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read vault balance: %w", err)
	}
	return decimal.NewFromBigInt(balance, -usdcDecimals), nil
}

// LatestBlock gets the latest block number
func (c *Client) LatestBlock(ctx context.Context) (uint64, error) {
	header, err := c.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to get latest block: %w", err)
	}
	return header.Number.Uint64(), nil
}

// FilterContributions returns the vault's ContributionReceived events in the
// given block range.
func (c *Client) FilterContributions(ctx context.Context, fromBlock, toBlock uint64) ([]ContributionEvent, error) {
	if c.vault == nil {
		return nil, fmt.Errorf("no vault contract configured")
	}

	logs, err := c.client.FilterLogs(ctx, goethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{c.vaultAddress},
		Topics:    [][]common.Hash{{c.vault.ContributionReceivedID()}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to filter contribution logs: %w", err)
	}

	events := make([]ContributionEvent, 0, len(logs))
	for _, log := range logs {
		parsed, err := c.vault.ParseContributionReceived(log)
		if err != nil {
			c.logger.Warn("Failed to parse contribution log",
				zap.Error(err),
				zap.String("tx_hash", log.TxHash.Hex()))
			continue
		}
		events = append(events, ContributionEvent{
			Patron:      parsed.Patron,
			Creator:     parsed.Creator,
			Amount:      decimal.NewFromBigInt(parsed.Amount, -usdcDecimals),
			BlockNumber: log.BlockNumber,
			TxHash:      log.TxHash,
		})
	}
	return events, nil
}

// usdcUnits converts a decimal USDC amount to its integer on-chain units.
func usdcUnits(d decimal.Decimal) *big.Int {
	return d.Round(usdcDecimals).Shift(usdcDecimals).BigInt()
}
