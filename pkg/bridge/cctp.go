// Package bridge moves USDC between chains over Circle's CCTP: burn on the
// source chain, fetch the attestation, mint on the settlement chain.
package bridge

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

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

const usdcDecimals = 6

type chainBinding struct {
	cfg         config.ChainConfig
	client      *ethclient.Client
	usdc        *contracts.ERC20
	messenger   *contracts.TokenMessenger
	transmitter *contracts.MessageTransmitter
}

// Client implements the orchestrator's bridge gateway over CCTP.
type Client struct {
	chains         map[string]*chainBinding
	settlement     *chainBinding
	privateKey     *ecdsa.PrivateKey
	address        common.Address
	attestationURL string
	pollInterval   time.Duration
	attestTimeout  time.Duration
	httpClient     *http.Client
	logger         *zap.Logger
}

// NewClient dials every chain with CCTP contracts configured. The settlement
// chain must be among them so bridged funds can be minted there.
func NewClient(cfg *config.TipperConfig, logger *zap.Logger) (*Client, error) {
	privateKey, err := crypto.HexToECDSA(cfg.WalletKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet private key: %w", err)
	}

	c := &Client{
		chains:         make(map[string]*chainBinding),
		privateKey:     privateKey,
		address:        crypto.PubkeyToAddress(privateKey.PublicKey),
		attestationURL: strings.TrimRight(cfg.Bridge.AttestationURL, "/"),
		pollInterval:   cfg.Bridge.PollInterval,
		attestTimeout:  cfg.Bridge.AttestationTimeout,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		logger:         logger,
	}

	for name, chainCfg := range cfg.Chains {
		if chainCfg.MessageTransmitter == "" {
			continue
		}
		client, err := ethclient.Dial(chainCfg.RPCURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to chain %s: %w", name, err)
		}
		b := &chainBinding{cfg: chainCfg, client: client}

		b.usdc, err = contracts.NewERC20(common.HexToAddress(chainCfg.USDCContract), client)
		if err != nil {
			return nil, fmt.Errorf("failed to bind USDC on chain %s: %w", name, err)
		}
		if chainCfg.TokenMessenger != "" {
			b.messenger, err = contracts.NewTokenMessenger(common.HexToAddress(chainCfg.TokenMessenger), client)
			if err != nil {
				return nil, fmt.Errorf("failed to bind token messenger on chain %s: %w", name, err)
			}
		}
		b.transmitter, err = contracts.NewMessageTransmitter(common.HexToAddress(chainCfg.MessageTransmitter), client)
		if err != nil {
			return nil, fmt.Errorf("failed to bind message transmitter on chain %s: %w", name, err)
		}
		c.chains[name] = b
	}

	settlement, ok := c.chains[cfg.SettlementChain]
	if !ok {
		return nil, fmt.Errorf("settlement chain %q has no CCTP contracts configured", cfg.SettlementChain)
	}
	c.settlement = settlement

	return c, nil
}

// Close closes every chain connection.
func (c *Client) Close() {
	for _, b := range c.chains {
		b.client.Close()
	}
}

// Burn burns USDC on the source chain and returns the CCTP message emitted
// for it.
func (c *Client) Burn(ctx context.Context, source string, amount decimal.Decimal) (*tip.BridgeBurn, error) {
	b, ok := c.chains[source]
	if !ok || b.messenger == nil {
		return nil, fmt.Errorf("chain %q cannot bridge: no token messenger configured", source)
	}

	units := amount.Round(usdcDecimals).Shift(usdcDecimals).BigInt()

	allowance, err := b.usdc.Allowance(&bind.CallOpts{Context: ctx}, c.address, b.messenger.Address())
	if err != nil {
		return nil, fmt.Errorf("failed to read messenger allowance: %w", err)
	}
	if allowance.Cmp(units) < 0 {
		auth, err := c.transactor(ctx, b)
		if err != nil {
			return nil, err
		}
		tx, err := b.usdc.Approve(auth, b.messenger.Address(), units)
		if err != nil {
			return nil, fmt.Errorf("failed to approve messenger: %w", err)
		}
		receipt, err := bind.WaitMined(ctx, b.client, tx)
		if err != nil {
			return nil, fmt.Errorf("failed to wait for messenger approval: %w", err)
		}
		if receipt.Status != 1 {
			return nil, fmt.Errorf("messenger approval reverted: %s", tx.Hash().Hex())
		}
	}

	auth, err := c.transactor(ctx, b)
	if err != nil {
		return nil, err
	}

	var mintRecipient [32]byte
	copy(mintRecipient[12:], c.address.Bytes())

	tx, err := b.messenger.DepositForBurn(auth, units, c.settlement.cfg.CCTPDomain, mintRecipient, b.usdc.Address())
	if err != nil {
		return nil, fmt.Errorf("failed to submit burn: %w", err)
	}

	receipt, err := bind.WaitMined(ctx, b.client, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to wait for burn receipt: %w", err)
	}
	if receipt.Status != 1 {
		return nil, fmt.Errorf("burn reverted: %s", tx.Hash().Hex())
	}

	var message []byte
	for _, log := range receipt.Logs {
		if log.Address != b.transmitter.Address() || len(log.Topics) == 0 {
			continue
		}
		if log.Topics[0] != b.transmitter.MessageSentID() {
			continue
		}
		message, err = b.transmitter.ParseMessageSent(*log)
		if err != nil {
			return nil, fmt.Errorf("failed to parse burn message: %w", err)
		}
		break
	}
	if message == nil {
		return nil, fmt.Errorf("burn %s emitted no MessageSent event", tx.Hash().Hex())
	}

	c.logger.Info("Burn submitted",
		zap.String("source", source),
		zap.String("tx_hash", tx.Hash().Hex()),
		zap.String("amount", amount.String()))

	return &tip.BridgeBurn{TxHash: tx.Hash().Hex(), Message: message}, nil
}

// Attest polls the attestation service for the burn's signature, then mints
// on the settlement chain. A burn that stays unattested past the timeout is
// reported pending; the tip must not proceed.
func (c *Client) Attest(ctx context.Context, burn *tip.BridgeBurn) (*tip.BridgeResult, error) {
	messageHash := crypto.Keccak256Hash(burn.Message)

	attestation, err := c.pollAttestation(ctx, messageHash)
	if err != nil {
		return nil, err
	}
	if attestation == nil {
		return &tip.BridgeResult{
			Outcome: tip.BridgePending,
			Detail:  fmt.Sprintf("attestation for %s not ready after %s", burn.TxHash, c.attestTimeout),
		}, nil
	}

	auth, err := c.transactor(ctx, c.settlement)
	if err != nil {
		return nil, err
	}

	tx, err := c.settlement.transmitter.ReceiveMessage(auth, burn.Message, attestation)
	if err != nil {
		return nil, fmt.Errorf("failed to submit mint: %w", err)
	}

	receipt, err := bind.WaitMined(ctx, c.settlement.client, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to wait for mint receipt: %w", err)
	}
	if receipt.Status != 1 {
		return &tip.BridgeResult{
			Outcome: tip.BridgeFailed,
			Detail:  fmt.Sprintf("mint reverted: %s", tx.Hash().Hex()),
		}, nil
	}

	c.logger.Info("Bridged funds minted", zap.String("tx_hash", tx.Hash().Hex()))

	return &tip.BridgeResult{
		Outcome:    tip.BridgeSuccess,
		MintTxHash: tx.Hash().Hex(),
	}, nil
}

// pollAttestation returns the attestation bytes, or nil when the timeout
// lapses before the service signs the message.
func (c *Client) pollAttestation(ctx context.Context, messageHash common.Hash) ([]byte, error) {
	deadline := time.Now().Add(c.attestTimeout)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		attestation, done, err := c.fetchAttestation(ctx, messageHash)
		if err != nil {
			return nil, err
		}
		if done {
			return attestation, nil
		}
		if time.Now().After(deadline) {
			return nil, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) fetchAttestation(ctx context.Context, messageHash common.Hash) ([]byte, bool, error) {
	url := fmt.Sprintf("%s/v1/attestations/%s", c.attestationURL, messageHash.Hex())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to build attestation request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("failed to reach attestation service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// The service answers 404 until it has seen the burn.
	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("attestation service returned %d", resp.StatusCode)
	}

	var body struct {
		Status      string `json:"status"`
		Attestation string `json:"attestation"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, false, fmt.Errorf("failed to decode attestation response: %w", err)
	}
	if body.Status != "complete" {
		return nil, false, nil
	}
	return common.FromHex(body.Attestation), true, nil
}

func (c *Client) transactor(ctx context.Context, b *chainBinding) (*bind.TransactOpts, error) {
	auth, err := bind.NewKeyedTransactorWithChainID(c.privateKey, big.NewInt(b.cfg.ChainID))
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}

	nonce, err := b.client.PendingNonceAt(ctx, c.address)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	auth.Nonce = big.NewInt(int64(nonce))
	auth.Context = ctx
	return auth, nil
}
