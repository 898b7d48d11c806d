// Package signer produces EIP-712 signatures for orders. It is an input
// producer for the HTTP transport: it attaches a signature to an order
// and has no knowledge of transport internals.
package signer

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethmath "github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/grvt-dev/grvt-go/api"
)

// Domain constants for the exchange's signing scheme.
const (
	domainName    = "GRVT Exchange"
	domainVersion = "0"
)

// fixedPointDecimals: sizes and prices are signed as integers scaled by
// 10^9.
const fixedPointDecimals = 9

// orderValidity is how long a signed order stays valid.
const orderValidity = 5 * time.Minute

var timeInForceCodes = map[string]uint8{
	"GOOD_TILL_TIME":      1,
	"ALL_OR_NONE":         2,
	"IMMEDIATE_OR_CANCEL": 3,
	"FILL_OR_KILL":        4,
}

var orderTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
	},
	"Order": {
		{Name: "subAccountID", Type: "uint64"},
		{Name: "isMarket", Type: "bool"},
		{Name: "timeInForce", Type: "uint8"},
		{Name: "postOnly", Type: "bool"},
		{Name: "reduceOnly", Type: "bool"},
		{Name: "legs", Type: "OrderLeg[]"},
		{Name: "nonce", Type: "uint32"},
		{Name: "expiration", Type: "int64"},
	},
	"OrderLeg": {
		{Name: "assetID", Type: "uint256"},
		{Name: "contractSize", Type: "uint64"},
		{Name: "limitPrice", Type: "uint64"},
		{Name: "isBuyingContract", Type: "bool"},
	},
}

// Signer signs orders with a secp256k1 key registered for the account.
type Signer struct {
	key     *ecdsa.PrivateKey
	chainID int64
	address common.Address
}

// New creates a Signer from a hex-encoded private key.
func New(privateKeyHex string, chainID int64) (*Signer, error) {
	privateKeyHex = strings.TrimPrefix(privateKeyHex, "0x")
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	return &Signer{
		key:     key,
		chainID: chainID,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// Address returns the signing address.
func (s *Signer) Address() string {
	return s.address.Hex()
}

// SignOrder attaches an EIP-712 signature to the order. assetIDs maps
// instrument names to their on-chain asset ids.
func (s *Signer) SignOrder(order *api.Order, assetIDs map[string]uint32) error {
	subAccountID, err := strconv.ParseUint(order.SubAccountID, 10, 64)
	if err != nil {
		return fmt.Errorf("parse sub account id: %w", err)
	}
	tif, ok := timeInForceCodes[order.TimeInForce]
	if !ok {
		return fmt.Errorf("unknown time in force %q", order.TimeInForce)
	}

	legs := make([]map[string]any, 0, len(order.Legs))
	for _, leg := range order.Legs {
		assetID, ok := assetIDs[leg.Instrument]
		if !ok {
			return fmt.Errorf("no asset id for instrument %q", leg.Instrument)
		}
		size, err := toFixedPoint(leg.Size)
		if err != nil {
			return fmt.Errorf("leg size: %w", err)
		}
		price, err := toFixedPoint(leg.LimitPrice)
		if err != nil {
			return fmt.Errorf("leg limit price: %w", err)
		}
		legs = append(legs, map[string]any{
			"assetID":          strconv.FormatUint(uint64(assetID), 10),
			"contractSize":     strconv.FormatUint(size, 10),
			"limitPrice":       strconv.FormatUint(price, 10),
			"isBuyingContract": leg.IsBuyingAsset,
		})
	}

	nonce := rand.Uint32()
	expiration := time.Now().Add(orderValidity).UnixNano()

	typedData := apitypes.TypedData{
		Types:       orderTypes,
		PrimaryType: "Order",
		Domain: apitypes.TypedDataDomain{
			Name:    domainName,
			Version: domainVersion,
			ChainId: ethmath.NewHexOrDecimal256(s.chainID),
		},
		Message: apitypes.TypedDataMessage{
			"subAccountID": strconv.FormatUint(subAccountID, 10),
			"isMarket":     false,
			"timeInForce":  strconv.FormatUint(uint64(tif), 10),
			"postOnly":     order.PostOnly,
			"reduceOnly":   order.ReduceOnly,
			"legs":         legs,
			"nonce":        strconv.FormatUint(uint64(nonce), 10),
			"expiration":   strconv.FormatInt(expiration, 10),
		},
	}

	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return fmt.Errorf("hash typed data: %w", err)
	}
	sig, err := crypto.Sign(hash, s.key)
	if err != nil {
		return fmt.Errorf("sign order: %w", err)
	}

	order.Signature = api.Signature{
		Signer:     s.address.Hex(),
		R:          hexutil.Encode(sig[:32]),
		S:          hexutil.Encode(sig[32:64]),
		V:          int(sig[64]) + 27,
		Expiration: strconv.FormatInt(expiration, 10),
		Nonce:      nonce,
	}
	return nil
}

// toFixedPoint converts a decimal string to an integer scaled by 10^9.
func toFixedPoint(value string) (uint64, error) {
	r, ok := new(big.Rat).SetString(value)
	if !ok {
		return 0, fmt.Errorf("invalid decimal %q", value)
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(fixedPointDecimals), nil)
	r.Mul(r, new(big.Rat).SetInt(scale))
	if !r.IsInt() {
		return 0, fmt.Errorf("%q exceeds %d decimal places", value, fixedPointDecimals)
	}
	n := r.Num()
	if n.Sign() < 0 || !n.IsUint64() {
		return 0, fmt.Errorf("%q out of range", value)
	}
	return n.Uint64(), nil
}
