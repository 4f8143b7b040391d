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

// Circle CCTP v1 surface: burn on the source chain, mint on the destination
// chain against a signed attestation.

const tokenMessengerABI = `[
	{"inputs":[{"internalType":"uint256","name":"amount","type":"uint256"},{"internalType":"uint32","name":"destinationDomain","type":"uint32"},{"internalType":"bytes32","name":"mintRecipient","type":"bytes32"},{"internalType":"address","name":"burnToken","type":"address"}],"name":"depositForBurn","outputs":[{"internalType":"uint64","name":"nonce","type":"uint64"}],"stateMutability":"nonpayable","type":"function"}
]`

const messageTransmitterABI = `[
	{"inputs":[{"internalType":"bytes","name":"message","type":"bytes"},{"internalType":"bytes","name":"attestation","type":"bytes"}],"name":"receiveMessage","outputs":[{"internalType":"bool","name":"success","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
	{"anonymous":false,"inputs":[{"indexed":false,"internalType":"bytes","name":"message","type":"bytes"}],"name":"MessageSent","type":"event"}
]`

// TokenMessenger wraps the CCTP contract that burns USDC on the source chain.
type TokenMessenger struct {
	address  common.Address
	contract *bind.BoundContract
}

// NewTokenMessenger binds a TokenMessenger instance at the given address.
func NewTokenMessenger(address common.Address, backend bind.ContractBackend) (*TokenMessenger, error) {
	parsed, err := abi.JSON(strings.NewReader(tokenMessengerABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token messenger ABI: %w", err)
	}
	return &TokenMessenger{
		address:  address,
		contract: bind.NewBoundContract(address, parsed, backend, backend, backend),
	}, nil
}

// Address returns the bound contract address.
func (m *TokenMessenger) Address() common.Address {
	return m.address
}

// DepositForBurn burns amount of burnToken and requests a mint to
// mintRecipient on the destination domain.
func (m *TokenMessenger) DepositForBurn(opts *bind.TransactOpts, amount *big.Int, destinationDomain uint32, mintRecipient [32]byte, burnToken common.Address) (*types.Transaction, error) {
	return m.contract.Transact(opts, "depositForBurn", amount, destinationDomain, mintRecipient, burnToken)
}

// MessageTransmitter wraps the CCTP contract that emits burn messages on the
// source chain and mints against attestations on the destination chain.
type MessageTransmitter struct {
	address  common.Address
	abi      abi.ABI
	contract *bind.BoundContract
}

// NewMessageTransmitter binds a MessageTransmitter instance at the given address.
func NewMessageTransmitter(address common.Address, backend bind.ContractBackend) (*MessageTransmitter, error) {
	parsed, err := abi.JSON(strings.NewReader(messageTransmitterABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse message transmitter ABI: %w", err)
	}
	return &MessageTransmitter{
		address:  address,
		abi:      parsed,
		contract: bind.NewBoundContract(address, parsed, backend, backend, backend),
	}, nil
}

// Address returns the bound contract address.
func (m *MessageTransmitter) Address() common.Address {
	return m.address
}

// ReceiveMessage submits a burn message plus its attestation to mint on the
// destination chain.
func (m *MessageTransmitter) ReceiveMessage(opts *bind.TransactOpts, message, attestation []byte) (*types.Transaction, error) {
	return m.contract.Transact(opts, "receiveMessage", message, attestation)
}

// MessageSentID returns the topic hash of the MessageSent event.
func (m *MessageTransmitter) MessageSentID() common.Hash {
	return m.abi.Events["MessageSent"].ID
}

// ParseMessageSent decodes the raw burn message bytes out of a MessageSent log.
func (m *MessageTransmitter) ParseMessageSent(log types.Log) ([]byte, error) {
	event := struct {
		Message []byte
	}{}
	if err := m.contract.UnpackLog(&event, "MessageSent", log); err != nil {
		return nil, err
	}
	return event.Message, nil
}
