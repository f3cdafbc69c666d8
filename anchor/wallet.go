package anchor

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"os"
	"strings"

	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/decred/dcrd/chaincfg/v3"
	"github.com/decred/dcrd/dcrutil/v4"
	"github.com/decred/dcrd/rpcclient/v8"
	"github.com/decred/dcrd/txscript/v4"
	"github.com/decred/dcrd/txscript/v4/stdaddr"
	"github.com/decred/dcrd/wire"
	"github.com/riftlink/riftlink/apperr"
	"github.com/sirupsen/logrus"
)

// Wallet is the on-chain side of anchoring. Implementations submit a
// zero-value data output carrying the digest and report its confirmations.
type Wallet interface {
	// Connected errors when the wallet backend is unreachable.
	Connected(ctx context.Context) error
	// Network names the chain the wallet operates on ("mainnet", "testnet3", ...).
	Network(ctx context.Context) (string, error)
	// Address returns the wallet's receiving address used in anchor payloads.
	Address(ctx context.Context) (string, error)
	// SendAnchor broadcasts a self-transfer embedding data in an OP_RETURN
	// output and returns the transaction id.
	SendAnchor(ctx context.Context, data []byte) (string, error)
	// Confirmations reports how deep txid is. 0 means still in mempool.
	Confirmations(ctx context.Context, txid string) (int64, error)
}

const defaultFeeAtoms = 20000

// RPCConfig carries the dcrwallet JSON-RPC connection parameters.
type RPCConfig struct {
	Host     string
	User     string
	Pass     string
	CertPath string
	FeeAtoms int64
}

// RPCWallet drives a dcrwallet instance over JSON-RPC. Requests go through
// RawRequest so the client stays decoupled from wallet response type versions.
type RPCWallet struct {
	rpc      *rpcclient.Client
	params   *chaincfg.Params
	feeAtoms int64
	logger   *logrus.Logger

	address string
}

// NewRPCWallet dials the wallet over TLS websockets. The certificate file is
// required; there is no insecure fallback.
func NewRPCWallet(cfg RPCConfig, params *chaincfg.Params, logger *logrus.Logger) (*RPCWallet, error) {
	cert, err := os.ReadFile(cfg.CertPath)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrConfiguration, "reading wallet rpc certificate")
	}
	connCfg := &rpcclient.ConnConfig{
		Host:         cfg.Host,
		User:         cfg.User,
		Pass:         cfg.Pass,
		Endpoint:     "ws",
		Certificates: cert,
	}
	client, err := rpcclient.New(connCfg, nil)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrConfiguration, "connecting to wallet rpc")
	}
	fee := cfg.FeeAtoms
	if fee <= 0 {
		fee = defaultFeeAtoms
	}
	return &RPCWallet{rpc: client, params: params, feeAtoms: fee, logger: logger}, nil
}

// Shutdown tears down the RPC connection.
func (w *RPCWallet) Shutdown() {
	w.rpc.Shutdown()
}

func (w *RPCWallet) rawRequest(ctx context.Context, method string, params []json.RawMessage, out any) error {
	res, err := w.rpc.RawRequest(ctx, method, params)
	if err != nil {
		return apperr.Wrap(err, apperr.ErrTransaction, "wallet rpc "+method+" failed")
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(res, out); err != nil {
		return apperr.Wrap(err, apperr.ErrTransaction, "decoding wallet rpc "+method+" response")
	}
	return nil
}

func jsonParam(v any) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}

func (w *RPCWallet) Connected(ctx context.Context) error {
	return w.rawRequest(ctx, "version", nil, nil)
}

func (w *RPCWallet) Network(ctx context.Context) (string, error) {
	var info struct {
		TestNet bool `json:"testnet"`
	}
	if err := w.rawRequest(ctx, "getinfo", nil, &info); err != nil {
		return "", err
	}
	if info.TestNet {
		return chaincfg.TestNet3Params().Name, nil
	}
	return chaincfg.MainNetParams().Name, nil
}

func (w *RPCWallet) Address(ctx context.Context) (string, error) {
	if w.address != "" {
		return w.address, nil
	}
	var address string
	if err := w.rawRequest(ctx, "getnewaddress", nil, &address); err != nil {
		return "", err
	}
	w.address = address
	return address, nil
}

type unspentOutput struct {
	TxID          string  `json:"txid"`
	Vout          uint32  `json:"vout"`
	Amount        float64 `json:"amount"`
	Confirmations int64   `json:"confirmations"`
	Spendable     bool    `json:"spendable"`
}

// pickInput selects the smallest spendable output that still covers the fee,
// keeping large outputs intact for whatever else the wallet is used for.
func pickInput(outputs []unspentOutput, feeAtoms int64) (unspentOutput, int64, bool) {
	var best unspentOutput
	var bestAtoms int64
	for _, output := range outputs {
		if !output.Spendable {
			continue
		}
		amount, err := dcrutil.NewAmount(output.Amount)
		if err != nil {
			continue
		}
		atoms := int64(amount)
		if atoms <= feeAtoms {
			continue
		}
		if bestAtoms == 0 || atoms < bestAtoms {
			best, bestAtoms = output, atoms
		}
	}
	return best, bestAtoms, bestAtoms > 0
}

// SendAnchor builds a transaction spending one of the wallet's outputs back
// to itself, plus a zero-value OP_RETURN output carrying data. The wallet
// signs it and broadcasts it.
func (w *RPCWallet) SendAnchor(ctx context.Context, data []byte) (string, error) {
	var outputs []unspentOutput
	if err := w.rawRequest(ctx, "listunspent", nil, &outputs); err != nil {
		return "", err
	}
	input, inputAtoms, ok := pickInput(outputs, w.feeAtoms)
	if !ok {
		return "", apperr.Wrap(apperr.ErrTransaction, apperr.ErrTransaction, "wallet has no spendable output covering the fee")
	}

	selfAddress, err := w.Address(ctx)
	if err != nil {
		return "", err
	}
	addr, err := stdaddr.DecodeAddress(strings.TrimSpace(selfAddress), w.params)
	if err != nil {
		return "", apperr.Wrap(err, apperr.ErrTransaction, "decoding wallet address")
	}
	_, changeScript := addr.PaymentScript()

	dataScript, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_RETURN).
		AddData(data).
		Script()
	if err != nil {
		return "", apperr.Wrap(err, apperr.ErrTransaction, "building data script")
	}

	var prevHash chainhash.Hash
	if err := chainhash.Decode(&prevHash, input.TxID); err != nil {
		return "", apperr.Wrap(err, apperr.ErrTransaction, "decoding input txid")
	}

	tx := wire.NewMsgTx()
	tx.Version = 1
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: prevHash, Index: input.Vout},
		ValueIn:          inputAtoms,
	})
	tx.AddTxOut(&wire.TxOut{Value: inputAtoms - w.feeAtoms, PkScript: changeScript})
	tx.AddTxOut(&wire.TxOut{Value: 0, PkScript: dataScript})

	var raw strings.Builder
	if err := tx.Serialize(hex.NewEncoder(&raw)); err != nil {
		return "", apperr.Wrap(err, apperr.ErrTransaction, "serializing transaction")
	}

	var signed struct {
		Hex      string `json:"hex"`
		Complete bool   `json:"complete"`
	}
	if err := w.rawRequest(ctx, "signrawtransaction", []json.RawMessage{jsonParam(raw.String())}, &signed); err != nil {
		return "", err
	}
	if !signed.Complete {
		return "", apperr.Wrap(apperr.ErrTransaction, apperr.ErrTransaction, "wallet could not fully sign the transaction")
	}

	var txid string
	if err := w.rawRequest(ctx, "sendrawtransaction", []json.RawMessage{jsonParam(signed.Hex)}, &txid); err != nil {
		return "", err
	}
	w.logger.WithFields(logrus.Fields{
		"txid":  txid,
		"bytes": len(data),
	}).Info("anchor transaction broadcast")
	return txid, nil
}

func (w *RPCWallet) Confirmations(ctx context.Context, txid string) (int64, error) {
	var info struct {
		Confirmations int64 `json:"confirmations"`
	}
	if err := w.rawRequest(ctx, "gettransaction", []json.RawMessage{jsonParam(txid)}, &info); err != nil {
		return 0, err
	}
	return info.Confirmations, nil
}
