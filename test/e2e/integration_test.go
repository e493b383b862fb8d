// Package e2e provides end-to-end integration tests for the unum node:
// a bootstrapped world served over JSON-RPC, exercised the way a client
// would use it.
package e2e

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UnumOne/unum/pkg/config"
	"github.com/UnumOne/unum/pkg/genesis"
	"github.com/UnumOne/unum/pkg/rpc"
)

// testNode holds all components for E2E testing.
type testNode struct {
	server *rpc.Server
	world  *genesis.World
}

func units(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

func setupTestNode(t *testing.T) *testNode {
	cfg := config.Default()
	cfg.BasePriceUSD = units(100)
	cfg.SeedTokens = []config.SeedToken{
		{Symbol: "OMG", PriceUSD: units(7)},
	}

	world, err := genesis.Build(cfg)
	require.NoError(t, err)

	return &testNode{
		server: rpc.NewServer(world.Engine, world.Oracle, world.Log),
		world:  world,
	}
}

func makeRPCRequest(t *testing.T, server *rpc.Server, method string, params interface{}) map[string]interface{} {
	reqBody := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	}
	body, err := json.Marshal(reqBody)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func resultBig(t *testing.T, resp map[string]interface{}) *big.Int {
	require.Nil(t, resp["error"], "rpc error: %v", resp["error"])
	s, ok := resp["result"].(string)
	require.True(t, ok, "expected hex string result, got %T", resp["result"])
	value, err := hexutil.DecodeBig(s)
	require.NoError(t, err)
	return value
}

func TestE2E_BuyHoldSell(t *testing.T) {
	node := setupTestNode(t)
	buyer := node.world.Accounts[1].Address

	startingETH := node.world.Base.BalanceOf(buyer)

	// Quote matches execution at a stable price.
	quoteResp := makeRPCRequest(t, node.server, "unum_expectedBuyReturn",
		[]interface{}{"ETH", (*hexutil.Big)(units(2))})
	quoted := resultBig(t, quoteResp)

	buyResp := makeRPCRequest(t, node.server, "unum_buy", []interface{}{
		map[string]interface{}{"caller": buyer, "symbol": "ETH", "amountIn": (*hexutil.Big)(units(2))},
	})
	minted := resultBig(t, buyResp)
	assert.Equal(t, quoted, minted)

	// 2 ETH at $100 less the 5bp fee: 199.9 currency units.
	wantMinted := new(big.Int).Mul(big.NewInt(1999), units(1))
	wantMinted.Div(wantMinted, big.NewInt(10))
	assert.Equal(t, wantMinted, minted)

	// The buyer's ETH left custody.
	spentETH := new(big.Int).Sub(startingETH, node.world.Base.BalanceOf(buyer))
	assert.Equal(t, units(2), spentETH)
	assert.Equal(t, units(2), node.world.Base.BalanceOf(genesis.EngineAddress))

	balResp := makeRPCRequest(t, node.server, "unum_balanceOf", []common.Address{buyer})
	assert.Equal(t, minted, resultBig(t, balResp))

	// Sell everything back. The round trip costs two fees, so the buyer
	// ends with less ETH than they started with and the difference stays
	// in the fee pool.
	sellResp := makeRPCRequest(t, node.server, "unum_sell", []interface{}{
		map[string]interface{}{"caller": buyer, "symbol": "ETH", "unumIn": (*hexutil.Big)(minted)},
	})
	returned := resultBig(t, sellResp)
	assert.Equal(t, -1, returned.Cmp(units(2)))

	supplyResp := makeRPCRequest(t, node.server, "unum_totalSupply", []interface{}{})
	assert.Equal(t, 0, resultBig(t, supplyResp).Sign())

	feeResp := makeRPCRequest(t, node.server, "unum_ethFeeBalance", []interface{}{})
	fees := resultBig(t, feeResp)
	assert.Equal(t, 1, fees.Sign())

	// Custody retains exactly the round-trip difference.
	custody := node.world.Base.BalanceOf(genesis.EngineAddress)
	assert.Equal(t, new(big.Int).Sub(units(2), returned), custody)
}

func TestE2E_TokenCollateral(t *testing.T) {
	node := setupTestNode(t)
	buyer := node.world.Accounts[2].Address
	token := node.world.Tokens["OMG"]

	require.NoError(t, token.Mint(buyer, units(500)))
	token.Approve(buyer, genesis.EngineAddress, units(500))

	buyResp := makeRPCRequest(t, node.server, "unum_buy", []interface{}{
		map[string]interface{}{"caller": buyer, "symbol": "OMG", "amountIn": (*hexutil.Big)(units(100))},
	})
	minted := resultBig(t, buyResp)

	// 100 OMG at $7 less the 5bp fee: 699.65 currency units.
	wantMinted := new(big.Int).Mul(big.NewInt(69965), units(1))
	wantMinted.Div(wantMinted, big.NewInt(100))
	assert.Equal(t, wantMinted, minted)

	assert.Equal(t, units(400), token.BalanceOf(buyer))
	assert.Equal(t, units(100), token.BalanceOf(genesis.EngineAddress))

	reserveResp := makeRPCRequest(t, node.server, "unum_availableReserve", []string{"OMG"})
	reserve := resultBig(t, reserveResp)
	feesResp := makeRPCRequest(t, node.server, "unum_tokenFeeBalance", []string{"OMG"})
	fees := resultBig(t, feesResp)
	assert.Equal(t, units(100), new(big.Int).Add(reserve, fees))

	usdResp := makeRPCRequest(t, node.server, "unum_availableReserveInUSD", []interface{}{})
	assert.Equal(t, minted, resultBig(t, usdResp))
}

func TestE2E_PriceDropCausesSellPenalty(t *testing.T) {
	node := setupTestNode(t)
	owner := node.world.Accounts[0].Address
	buyer := node.world.Accounts[1].Address

	buyResp := makeRPCRequest(t, node.server, "unum_buy", []interface{}{
		map[string]interface{}{"caller": buyer, "symbol": "ETH", "amountIn": (*hexutil.Big)(units(10))},
	})
	resultBig(t, buyResp)

	// Crash the price: the reserve now backs only 90% of the supply.
	setResp := makeRPCRequest(t, node.server, "oracle_setPriceInUSD", []interface{}{
		map[string]interface{}{"caller": owner, "symbol": "ETH", "price": (*hexutil.Big)(units(90))},
	})
	require.Nil(t, setResp["error"])

	penaltyResp := makeRPCRequest(t, node.server, "unum_reserveDeficitSellPenalty",
		[]interface{}{(*hexutil.Big)(units(100))})
	penalty := resultBig(t, penaltyResp)
	assert.Equal(t, 1, penalty.Sign())

	quoteAtPar := makeRPCRequest(t, node.server, "unum_expectedSellReturn",
		[]interface{}{"ETH", (*hexutil.Big)(units(100))})
	quoted := resultBig(t, quoteAtPar)

	sellResp := makeRPCRequest(t, node.server, "unum_sell", []interface{}{
		map[string]interface{}{"caller": buyer, "symbol": "ETH", "unumIn": (*hexutil.Big)(units(100))},
	})
	assert.Equal(t, quoted, resultBig(t, sellResp))
}

func TestE2E_OwnerOperations(t *testing.T) {
	node := setupTestNode(t)
	owner := node.world.Accounts[0].Address
	stranger := node.world.Accounts[3].Address

	// Only the owner may pause buying or start a sale.
	denied := makeRPCRequest(t, node.server, "unum_setBuyingDisabled", []interface{}{
		map[string]interface{}{"caller": stranger, "symbol": "ETH", "disabled": true},
	})
	require.NotNil(t, denied["error"])

	paused := makeRPCRequest(t, node.server, "unum_setBuyingDisabled", []interface{}{
		map[string]interface{}{"caller": owner, "symbol": "ETH", "disabled": true},
	})
	require.Nil(t, paused["error"])

	blocked := makeRPCRequest(t, node.server, "unum_buy", []interface{}{
		map[string]interface{}{"caller": stranger, "symbol": "ETH", "amountIn": (*hexutil.Big)(units(1))},
	})
	require.NotNil(t, blocked["error"])

	resumed := makeRPCRequest(t, node.server, "unum_setBuyingDisabled", []interface{}{
		map[string]interface{}{"caller": owner, "symbol": "ETH", "disabled": false},
	})
	require.Nil(t, resumed["error"])

	started := makeRPCRequest(t, node.server, "unum_startBonusSale", []interface{}{
		map[string]interface{}{"caller": owner, "durationDays": 3, "unumCap": (*hexutil.Big)(units(100000))},
	})
	require.Nil(t, started["error"])

	runningResp := makeRPCRequest(t, node.server, "unum_isBonusSaleRunning", []interface{}{})
	assert.Equal(t, true, runningResp["result"])

	// Day one of the sale pays a 1% bonus on top of the quoted amount.
	buyResp := makeRPCRequest(t, node.server, "unum_buy", []interface{}{
		map[string]interface{}{"caller": stranger, "symbol": "ETH", "amountIn": (*hexutil.Big)(units(1))},
	})
	minted := resultBig(t, buyResp)

	base := new(big.Int).Mul(big.NewInt(9995), units(1))
	base.Div(base, big.NewInt(100))
	wantMinted := new(big.Int).Mul(base, big.NewInt(101))
	wantMinted.Div(wantMinted, big.NewInt(100))
	assert.Equal(t, wantMinted, minted)
}

func TestE2E_FeeCollection(t *testing.T) {
	node := setupTestNode(t)
	owner := node.world.Accounts[0].Address
	buyer := node.world.Accounts[1].Address

	buyResp := makeRPCRequest(t, node.server, "unum_buy", []interface{}{
		map[string]interface{}{"caller": buyer, "symbol": "ETH", "amountIn": (*hexutil.Big)(units(4))},
	})
	resultBig(t, buyResp)

	feeResp := makeRPCRequest(t, node.server, "unum_ethFeeBalance", []interface{}{})
	fees := resultBig(t, feeResp)
	require.Equal(t, 1, fees.Sign())

	ownerETHBefore := node.world.Base.BalanceOf(owner)

	collected := makeRPCRequest(t, node.server, "unum_collectFees", []interface{}{
		map[string]interface{}{"caller": owner, "symbol": "ETH", "amount": (*hexutil.Big)(fees)},
	})
	require.Nil(t, collected["error"])

	gained := new(big.Int).Sub(node.world.Base.BalanceOf(owner), ownerETHBefore)
	assert.Equal(t, fees, gained)

	drained := makeRPCRequest(t, node.server, "unum_ethFeeBalance", []interface{}{})
	assert.Equal(t, 0, resultBig(t, drained).Sign())

	// A second collection of the same amount must fail: the pool is empty.
	again := makeRPCRequest(t, node.server, "unum_collectFees", []interface{}{
		map[string]interface{}{"caller": owner, "symbol": "ETH", "amount": (*hexutil.Big)(fees)},
	})
	require.NotNil(t, again["error"])
}

func TestE2E_OracleLastUpdated(t *testing.T) {
	node := setupTestNode(t)

	resp := makeRPCRequest(t, node.server, "oracle_getLastUpdated", []string{"ETH"})
	require.Nil(t, resp["error"])
	ts, ok := resp["result"].(float64)
	require.True(t, ok)
	assert.InDelta(t, time.Now().Unix(), int64(ts), 60)
}
