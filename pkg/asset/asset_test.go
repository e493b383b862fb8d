package asset

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	holder  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	spender = common.HexToAddress("0x2222222222222222222222222222222222222222")
	vault   = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

func TestNativeAsset_CreditAndTransfer(t *testing.T) {
	native := NewNativeAsset()
	native.Credit(holder, big.NewInt(1000))

	supply, err := native.TotalSupply()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1000), supply)

	require.NoError(t, native.Transfer(holder, vault, big.NewInt(400)))
	assert.Equal(t, big.NewInt(600), native.BalanceOf(holder))
	assert.Equal(t, big.NewInt(400), native.BalanceOf(vault))
}

func TestNativeAsset_TransferFrom_NoAllowanceNeeded(t *testing.T) {
	native := NewNativeAsset()
	native.Credit(holder, big.NewInt(1000))

	// Native value travels with the call, so the pull succeeds without an
	// approval step.
	require.NoError(t, native.TransferFrom(spender, holder, vault, big.NewInt(250)))
	assert.Equal(t, big.NewInt(750), native.BalanceOf(holder))
}

func TestNativeAsset_InsufficientBalance(t *testing.T) {
	native := NewNativeAsset()
	native.Credit(holder, big.NewInt(100))

	err := native.Transfer(holder, vault, big.NewInt(101))
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, big.NewInt(100), native.BalanceOf(holder))
}

func TestTokenAsset_MintAndTransfer(t *testing.T) {
	token := NewTokenAsset("OMG")
	assert.Equal(t, "OMG", token.Symbol())

	require.NoError(t, token.Mint(holder, big.NewInt(1000)))

	supply, err := token.TotalSupply()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1000), supply)

	require.NoError(t, token.Transfer(holder, vault, big.NewInt(100)))
	assert.Equal(t, big.NewInt(900), token.BalanceOf(holder))
}

func TestTokenAsset_TransferFrom_ConsumesAllowance(t *testing.T) {
	token := NewTokenAsset("OMG")
	require.NoError(t, token.Mint(holder, big.NewInt(1000)))

	token.Approve(holder, spender, big.NewInt(500))
	assert.Equal(t, big.NewInt(500), token.Allowance(holder, spender))

	require.NoError(t, token.TransferFrom(spender, holder, vault, big.NewInt(300)))
	assert.Equal(t, big.NewInt(700), token.BalanceOf(holder))
	assert.Equal(t, big.NewInt(300), token.BalanceOf(vault))
	assert.Equal(t, big.NewInt(200), token.Allowance(holder, spender))
}

func TestTokenAsset_TransferFrom_ExceedsAllowance(t *testing.T) {
	token := NewTokenAsset("OMG")
	require.NoError(t, token.Mint(holder, big.NewInt(1000)))
	token.Approve(holder, spender, big.NewInt(100))

	err := token.TransferFrom(spender, holder, vault, big.NewInt(101))
	assert.ErrorIs(t, err, ErrInsufficientAllowance)
	assert.Equal(t, big.NewInt(1000), token.BalanceOf(holder))
}

func TestTokenAsset_TransferFrom_ExceedsBalance(t *testing.T) {
	token := NewTokenAsset("OMG")
	require.NoError(t, token.Mint(holder, big.NewInt(100)))
	token.Approve(holder, spender, big.NewInt(1000))

	err := token.TransferFrom(spender, holder, vault, big.NewInt(500))
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	// Allowance is untouched on a failed pull.
	assert.Equal(t, big.NewInt(1000), token.Allowance(holder, spender))
}

func TestDeadAsset_ProbeFails(t *testing.T) {
	dead := NewDeadAsset()
	_, err := dead.TotalSupply()
	assert.Error(t, err)
}
