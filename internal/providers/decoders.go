package providers

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Decoder maps one provider API shape onto an AddressBalance.
type Decoder interface {
	Decode(body []byte, decimals int) (*AddressBalance, error)
}

const (
	KindBlockCypher = "blockcypher"
	KindSoChain     = "sochain"
)

// DecoderFor selects the decoder for a configured endpoint kind.
func DecoderFor(kind string) (Decoder, error) {
	switch kind {
	case KindBlockCypher:
		return blockCypherDecoder{}, nil
	case KindSoChain:
		return soChainDecoder{}, nil
	default:
		return nil, fmt.Errorf("unknown provider kind %q", kind)
	}
}

// blockCypherDecoder handles the BlockCypher address endpoint: raw integer
// balances in the chain's smallest unit plus per-transaction confirmation
// counts.
type blockCypherDecoder struct{}

type blockCypherAddress struct {
	Balance            *int64             `json:"balance"`
	UnconfirmedBalance int64              `json:"unconfirmed_balance"`
	FinalBalance       int64              `json:"final_balance"`
	TxRefs             []blockCypherTxRef `json:"txrefs"`
}

type blockCypherTxRef struct {
	TxHash        string `json:"tx_hash"`
	Confirmations int    `json:"confirmations"`
	Value         int64  `json:"value"`
}

func (blockCypherDecoder) Decode(body []byte, decimals int) (*AddressBalance, error) {
	var payload blockCypherAddress
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal address summary: %w", err)
	}
	if payload.Balance == nil {
		return nil, fmt.Errorf("address summary missing balance")
	}

	result := &AddressBalance{
		Balance: scaleRawAmount(*payload.Balance, decimals),
	}
	for _, ref := range payload.TxRefs {
		if ref.TxHash == "" {
			continue
		}
		result.TxRefs = append(result.TxRefs, ref.TxHash)
	}
	// txrefs arrive most recent first; the newest inbound transfer carries
	// the confirmation count that gates the paid transition.
	if len(payload.TxRefs) > 0 {
		result.Confirmations = payload.TxRefs[0].Confirmations
		result.ConfirmationsKnown = true
	}
	return result, nil
}

// soChainDecoder handles the SoChain balance endpoint: native-unit decimal
// strings without confirmation detail.
type soChainDecoder struct{}

type soChainEnvelope struct {
	Status string      `json:"status"`
	Data   soChainData `json:"data"`
}

type soChainData struct {
	ConfirmedBalance string `json:"confirmed_balance"`
	Txs              []struct {
		TxID string `json:"txid"`
	} `json:"txs"`
}

func (soChainDecoder) Decode(body []byte, decimals int) (*AddressBalance, error) {
	var payload soChainEnvelope
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal balance envelope: %w", err)
	}
	if payload.Status != "success" {
		return nil, fmt.Errorf("balance envelope status %q", payload.Status)
	}
	if payload.Data.ConfirmedBalance == "" {
		return nil, fmt.Errorf("balance envelope missing confirmed_balance")
	}
	balance, err := decimal.NewFromString(payload.Data.ConfirmedBalance)
	if err != nil {
		return nil, fmt.Errorf("parse confirmed_balance: %w", err)
	}

	result := &AddressBalance{Balance: balance}
	for _, tx := range payload.Data.Txs {
		if tx.TxID == "" {
			continue
		}
		result.TxRefs = append(result.TxRefs, tx.TxID)
	}
	return result, nil
}

func scaleRawAmount(raw int64, decimals int) decimal.Decimal {
	if decimals <= 0 {
		return decimal.NewFromInt(raw)
	}
	return decimal.New(raw, -int32(decimals))
}
