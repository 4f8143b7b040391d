// Package contracts holds thin Go bindings for the on-chain contracts the
// tipping system talks to.
package contracts

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const creatorVaultABI = `[
	{"inputs":[{"internalType":"address","name":"creator","type":"address"},{"internalType":"uint256","name":"amount","type":"uint256"}],"name":"contribute","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"internalType":"address","name":"patron","type":"address"},{"internalType":"address","name":"creator","type":"address"},{"internalType":"uint256","name":"cashbackAmount","type":"uint256"},{"internalType":"uint256","name":"bonusAmount","type":"uint256"}],"name":"distributeLoyalty","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"internalType":"uint256","name":"amount","type":"uint256"}],"name":"withdraw","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"internalType":"address","name":"creator","type":"address"}],"name":"vaultBalance","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"operator","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"usdc","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"},
	{"anonymous":false,"inputs":[{"indexed":true,"internalType":"address","name":"patron","type":"address"},{"indexed":true,"internalType":"address","name":"creator","type":"address"},{"indexed":false,"internalType":"uint256","name":"amount","type":"uint256"},{"indexed":false,"internalType":"uint256","name":"creatorShare","type":"uint256"},{"indexed":false,"internalType":"uint256","name":"protocolFee","type":"uint256"},{"indexed":false,"internalType":"uint256","name":"timestamp","type":"uint256"}],"name":"ContributionReceived","type":"event"},
	{"anonymous":false,"inputs":[{"indexed":true,"internalType":"address","name":"patron","type":"address"},{"indexed":true,"internalType":"address","name":"creator","type":"address"},{"indexed":false,"internalType":"uint256","name":"cashbackAmount","type":"uint256"},{"indexed":false,"internalType":"uint256","name":"bonusAmount","type":"uint256"},{"indexed":false,"internalType":"uint256","name":"timestamp","type":"uint256"}],"name":"LoyaltyDistributed","type":"event"}
]`

// CreatorVault wraps the vault contract that escrows creator balances and
// pays loyalty rewards.
type CreatorVault struct {
	address  common.Address
	abi      abi.ABI
	contract *bind.BoundContract
}

// NewCreatorVault binds a CreatorVault instance at the given address.
func NewCreatorVault(address common.Address, backend bind.ContractBackend) (*CreatorVault, error) {
	parsed, err := abi.JSON(strings.NewReader(creatorVaultABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse vault ABI: %w", err)
	}
	return &CreatorVault{
		address:  address,
		abi:      parsed,
		contract: bind.NewBoundContract(address, parsed, backend, backend, backend),
	}, nil
}

// Address returns the bound contract address.
func (v *CreatorVault) Address() common.Address {
	return v.address
}

// Contribute transfers pre-approved USDC from the caller into the creator's
// vault balance.
func (v *CreatorVault) Contribute(opts *bind.TransactOpts, creator common.Address, amount *big.Int) (*types.Transaction, error) {
	return v.contract.Transact(opts, "contribute", creator, amount)
}

// DistributeLoyalty pays cashback to the patron and a bonus to the creator.
// Callable by the vault operator only.
func (v *CreatorVault) DistributeLoyalty(opts *bind.TransactOpts, patron, creator common.Address, cashbackAmount, bonusAmount *big.Int) (*types.Transaction, error) {
	return v.contract.Transact(opts, "distributeLoyalty", patron, creator, cashbackAmount, bonusAmount)
}

// Withdraw moves accrued balance out of the caller's vault.
func (v *CreatorVault) Withdraw(opts *bind.TransactOpts, amount *big.Int) (*types.Transaction, error) {
	return v.contract.Transact(opts, "withdraw", amount)
}

// VaultBalance returns the creator's current escrowed balance.
func (v *CreatorVault) VaultBalance(opts *bind.CallOpts, creator common.Address) (*big.Int, error) {
	var out []any
	if err := v.contract.Call(opts, &out, "vaultBalance", creator); err != nil {
		return nil, err
	}
	return abi.ConvertType(out[0], new(big.Int)).(*big.Int), nil
}

// Operator returns the address allowed to call distributeLoyalty.
func (v *CreatorVault) Operator(opts *bind.CallOpts) (common.Address, error) {
	var out []any
	if err := v.contract.Call(opts, &out, "operator"); err != nil {
		return common.Address{}, err
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

// USDC returns the stablecoin address the vault settles in.
func (v *CreatorVault) USDC(opts *bind.CallOpts) (common.Address, error) {
	var out []any
	if err := v.contract.Call(opts, &out, "usdc"); err != nil {
		return common.Address{}, err
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

// ContributionReceived is emitted by the vault for every settled tip.
type ContributionReceived struct {
	Patron       common.Address
	Creator      common.Address
	Amount       *big.Int
	CreatorShare *big.Int
	ProtocolFee  *big.Int
	Timestamp    *big.Int
	Raw          types.Log
}

// ContributionReceivedID returns the topic hash of the ContributionReceived event.
func (v *CreatorVault) ContributionReceivedID() common.Hash {
	return v.abi.Events["ContributionReceived"].ID
}

// ParseContributionReceived decodes a raw log into a ContributionReceived event.
func (v *CreatorVault) ParseContributionReceived(log types.Log) (*ContributionReceived, error) {
	event := new(ContributionReceived)
	if err := v.contract.UnpackLog(event, "ContributionReceived", log); err != nil {
		return nil, err
	}
	event.Raw = log
	return event, nil
}

// LoyaltyDistributed is emitted by the vault when a loyalty payout settles.
type LoyaltyDistributed struct {
	Patron         common.Address
	Creator        common.Address
	CashbackAmount *big.Int
	BonusAmount    *big.Int
	Timestamp      *big.Int
	Raw            types.Log
}

// ParseLoyaltyDistributed decodes a raw log into a LoyaltyDistributed event.
func (v *CreatorVault) ParseLoyaltyDistributed(log types.Log) (*LoyaltyDistributed, error) {
	event := new(LoyaltyDistributed)
	if err := v.contract.UnpackLog(event, "LoyaltyDistributed", log); err != nil {
		return nil, err
	}
	event.Raw = log
	return event, nil
}
