// Package rpc provides the JSON-RPC surface over the issuance engine and
// price oracle. Presentation only: every method delegates to the engine,
// which enforces authorization and atomicity.
package rpc

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/UnumOne/unum/pkg/engine"
	"github.com/UnumOne/unum/pkg/events"
	"github.com/UnumOne/unum/pkg/ledger"
	"github.com/UnumOne/unum/pkg/oracle"
)

// JSON-RPC error codes.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternal       = -32603
)

// ClientVersion identifies this node implementation.
const ClientVersion = "unum-node/v0.1.0"

// Request represents a JSON-RPC request.
type Request struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Response represents a JSON-RPC response.
type Response struct {
	Jsonrpc string       `json:"jsonrpc"`
	ID      interface{}  `json:"id"`
	Result  interface{}  `json:"result,omitempty"`
	Error   *ErrorObject `json:"error,omitempty"`
}

// ErrorObject represents a JSON-RPC error.
type ErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Server exposes the engine and oracle over JSON-RPC.
type Server struct {
	engine *engine.Engine
	oracle *oracle.PriceInUSDOracle
	log    *events.Log
}

// NewServer creates an RPC server over an engine, its oracle and its event
// log.
func NewServer(eng *engine.Engine, orc *oracle.PriceInUSDOracle, log *events.Log) *Server {
	return &Server{engine: eng, oracle: orc, log: log}
}

// ServeHTTP handles HTTP requests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, nil, ErrCodeParseError, "Failed to read request body")
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, nil, ErrCodeParseError, "Parse error")
		return
	}

	result, rpcErr := s.handleMethod(req.Method, req.Params)
	if rpcErr != nil {
		s.writeError(w, req.ID, rpcErr.Code, rpcErr.Message)
		return
	}

	resp := Response{Jsonrpc: "2.0", ID: req.ID, Result: result}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.writeError(w, req.ID, ErrCodeInternal, "Failed to encode response")
	}
}

// writeError writes a JSON-RPC error response.
func (s *Server) writeError(w http.ResponseWriter, id interface{}, code int, message string) {
	resp := Response{
		Jsonrpc: "2.0",
		ID:      id,
		Error:   &ErrorObject{Code: code, Message: message},
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// invalidParams builds the standard invalid-params error.
func invalidParams(err error) *ErrorObject {
	return &ErrorObject{Code: ErrCodeInvalidParams, Message: fmt.Sprintf("Invalid params: %v", err)}
}

// engineError maps an engine failure onto a JSON-RPC error.
func engineError(err error) *ErrorObject {
	return &ErrorObject{Code: ErrCodeInternal, Message: err.Error()}
}

// handleMethod dispatches a JSON-RPC method call.
func (s *Server) handleMethod(method string, params json.RawMessage) (interface{}, *ErrorObject) {
	switch method {
	case "web3_clientVersion":
		return ClientVersion, nil

	case "unum_name":
		return ledger.Name, nil
	case "unum_symbol":
		return ledger.Symbol, nil
	case "unum_decimals":
		return ledger.Decimals, nil

	case "unum_buy":
		var p struct {
			Caller   common.Address `json:"caller"`
			Symbol   string         `json:"symbol"`
			AmountIn *hexutil.Big   `json:"amountIn"`
		}
		if err := parseObject(params, &p); err != nil {
			return nil, invalidParams(err)
		}
		minted, err := s.engine.Buy(p.Caller, p.Symbol, (*big.Int)(p.AmountIn))
		if err != nil {
			return nil, engineError(err)
		}
		return (*hexutil.Big)(minted), nil

	case "unum_sell":
		var p struct {
			Caller common.Address `json:"caller"`
			Symbol string         `json:"symbol"`
			UnumIn *hexutil.Big   `json:"unumIn"`
		}
		if err := parseObject(params, &p); err != nil {
			return nil, invalidParams(err)
		}
		out, err := s.engine.Sell(p.Caller, p.Symbol, (*big.Int)(p.UnumIn))
		if err != nil {
			return nil, engineError(err)
		}
		return (*hexutil.Big)(out), nil

	case "unum_expectedBuyReturn":
		symbol, amount, err := parseSymbolAmount(params)
		if err != nil {
			return nil, invalidParams(err)
		}
		minted, eerr := s.engine.ExpectedBuyReturn(symbol, amount)
		if eerr != nil {
			return nil, engineError(eerr)
		}
		return (*hexutil.Big)(minted), nil

	case "unum_expectedSellReturn":
		symbol, amount, err := parseSymbolAmount(params)
		if err != nil {
			return nil, invalidParams(err)
		}
		out, eerr := s.engine.ExpectedSellReturn(symbol, amount)
		if eerr != nil {
			return nil, engineError(eerr)
		}
		return (*hexutil.Big)(out), nil

	case "unum_conversionFee":
		var p []*hexutil.Big
		if err := json.Unmarshal(params, &p); err != nil || len(p) != 1 {
			return nil, invalidParams(fmt.Errorf("expected [amount]"))
		}
		return (*hexutil.Big)(s.engine.ConversionFee((*big.Int)(p[0]))), nil

	case "unum_reserveDeficitSellPenalty":
		var p []*hexutil.Big
		if err := json.Unmarshal(params, &p); err != nil || len(p) != 1 {
			return nil, invalidParams(fmt.Errorf("expected [unumIn]"))
		}
		penalty, err := s.engine.ReserveDeficitSellPenalty((*big.Int)(p[0]))
		if err != nil {
			return nil, engineError(err)
		}
		return (*hexutil.Big)(penalty), nil

	case "unum_availableReserve":
		symbol, err := parseSymbol(params)
		if err != nil {
			return nil, invalidParams(err)
		}
		held, eerr := s.engine.AvailableReserve(symbol)
		if eerr != nil {
			return nil, engineError(eerr)
		}
		return (*hexutil.Big)(held), nil

	case "unum_availableReserveInUSD":
		value, err := s.engine.AvailableReserveInUSD()
		if err != nil {
			return nil, engineError(err)
		}
		return (*hexutil.Big)(value), nil

	case "unum_ethFeeBalance":
		return (*hexutil.Big)(s.engine.EthFeeBalance()), nil

	case "unum_tokenFeeBalance":
		symbol, err := parseSymbol(params)
		if err != nil {
			return nil, invalidParams(err)
		}
		fees, eerr := s.engine.TokenFeeBalance(symbol)
		if eerr != nil {
			return nil, engineError(eerr)
		}
		return (*hexutil.Big)(fees), nil

	case "unum_balanceOf":
		var p []common.Address
		if err := json.Unmarshal(params, &p); err != nil || len(p) != 1 {
			return nil, invalidParams(fmt.Errorf("expected [address]"))
		}
		return (*hexutil.Big)(s.engine.BalanceOf(p[0])), nil

	case "unum_totalSupply":
		return (*hexutil.Big)(s.engine.TotalSupply()), nil

	case "unum_totalCreated":
		return (*hexutil.Big)(s.engine.TotalCreated()), nil

	case "unum_transfer":
		var p struct {
			From   common.Address `json:"from"`
			To     common.Address `json:"to"`
			Amount *hexutil.Big   `json:"amount"`
		}
		if err := parseObject(params, &p); err != nil {
			return nil, invalidParams(err)
		}
		if err := s.engine.Transfer(p.From, p.To, (*big.Int)(p.Amount)); err != nil {
			return nil, engineError(err)
		}
		return true, nil

	case "unum_supportsToken":
		symbol, err := parseSymbol(params)
		if err != nil {
			return nil, invalidParams(err)
		}
		return s.engine.SupportsToken(symbol), nil

	case "unum_symbols":
		return s.engine.Symbols(), nil

	case "unum_bonusRatePercent":
		return s.engine.BonusRatePercent(), nil

	case "unum_isBonusSaleRunning":
		return s.engine.IsBonusSaleRunning(), nil

	case "unum_startBonusSale":
		var p struct {
			Caller       common.Address `json:"caller"`
			DurationDays int            `json:"durationDays"`
			UnumCap      *hexutil.Big   `json:"unumCap"`
		}
		if err := parseObject(params, &p); err != nil {
			return nil, invalidParams(err)
		}
		if err := s.engine.StartBonusSale(p.Caller, p.DurationDays, (*big.Int)(p.UnumCap)); err != nil {
			return nil, engineError(err)
		}
		return true, nil

	case "unum_setBuyingDisabled":
		var p struct {
			Caller   common.Address `json:"caller"`
			Symbol   string         `json:"symbol"`
			Disabled bool           `json:"disabled"`
		}
		if err := parseObject(params, &p); err != nil {
			return nil, invalidParams(err)
		}
		if err := s.engine.SetBuyingDisabled(p.Caller, p.Symbol, p.Disabled); err != nil {
			return nil, engineError(err)
		}
		return true, nil

	case "unum_collectFees":
		var p struct {
			Caller common.Address `json:"caller"`
			Symbol string         `json:"symbol"`
			Amount *hexutil.Big   `json:"amount"`
		}
		if err := parseObject(params, &p); err != nil {
			return nil, invalidParams(err)
		}
		if err := s.engine.CollectFees(p.Caller, p.Symbol, (*big.Int)(p.Amount)); err != nil {
			return nil, engineError(err)
		}
		return true, nil

	case "unum_transferOwnership":
		var p struct {
			Caller   common.Address `json:"caller"`
			NewOwner common.Address `json:"newOwner"`
		}
		if err := parseObject(params, &p); err != nil {
			return nil, invalidParams(err)
		}
		if err := s.engine.TransferOwnership(p.Caller, p.NewOwner); err != nil {
			return nil, engineError(err)
		}
		return true, nil

	case "oracle_addItem":
		var p struct {
			Caller common.Address `json:"caller"`
			Symbol string         `json:"symbol"`
		}
		if err := parseObject(params, &p); err != nil {
			return nil, invalidParams(err)
		}
		if err := s.oracle.AddItem(p.Caller, p.Symbol); err != nil {
			return nil, engineError(err)
		}
		return true, nil

	case "oracle_setPriceInUSD":
		var p struct {
			Caller common.Address `json:"caller"`
			Symbol string         `json:"symbol"`
			Price  *hexutil.Big   `json:"price"`
		}
		if err := parseObject(params, &p); err != nil {
			return nil, invalidParams(err)
		}
		if err := s.oracle.SetPriceInUSD(p.Caller, p.Symbol, (*big.Int)(p.Price), time.Now()); err != nil {
			return nil, engineError(err)
		}
		return true, nil

	case "oracle_getPriceInUSD":
		symbol, err := parseSymbol(params)
		if err != nil {
			return nil, invalidParams(err)
		}
		price, _, perr := s.oracle.PriceOf(symbol)
		if perr != nil {
			return nil, engineError(perr)
		}
		return (*hexutil.Big)(price), nil

	case "oracle_getLastUpdated":
		symbol, err := parseSymbol(params)
		if err != nil {
			return nil, invalidParams(err)
		}
		updated, uerr := s.oracle.LastUpdated(symbol)
		if uerr != nil {
			return nil, engineError(uerr)
		}
		return updated.Unix(), nil

	case "unum_events":
		entries := s.log.All()
		out := make([]map[string]interface{}, len(entries))
		for i, entry := range entries {
			out[i] = map[string]interface{}{
				"seq":   entry.Seq,
				"event": entry.Event.Name(),
				"data":  entry.Event,
			}
		}
		return out, nil

	default:
		return nil, &ErrorObject{
			Code:    ErrCodeMethodNotFound,
			Message: fmt.Sprintf("Method %s not found", method),
		}
	}
}

// parseObject unmarshals a single-object params array into dst.
func parseObject(params json.RawMessage, dst interface{}) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(params, &raw); err != nil {
		return err
	}
	if len(raw) != 1 {
		return fmt.Errorf("expected a single object parameter")
	}
	return json.Unmarshal(raw[0], dst)
}

// parseSymbol unmarshals a [symbol] params array.
func parseSymbol(params json.RawMessage) (string, error) {
	var p []string
	if err := json.Unmarshal(params, &p); err != nil {
		return "", err
	}
	if len(p) != 1 {
		return "", fmt.Errorf("expected [symbol]")
	}
	return p[0], nil
}

// parseSymbolAmount unmarshals a [symbol, amount] params array.
func parseSymbolAmount(params json.RawMessage) (string, *big.Int, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(params, &raw); err != nil {
		return "", nil, err
	}
	if len(raw) != 2 {
		return "", nil, fmt.Errorf("expected [symbol, amount]")
	}
	var symbol string
	if err := json.Unmarshal(raw[0], &symbol); err != nil {
		return "", nil, err
	}
	var amount hexutil.Big
	if err := json.Unmarshal(raw[1], &amount); err != nil {
		return "", nil, err
	}
	return symbol, (*big.Int)(&amount), nil
}
