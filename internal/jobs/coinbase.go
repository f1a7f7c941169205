package jobs

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// BuildCoinbaseTx reconstructs the coinbase transaction a StandardJob was
// built from, using the same fields the factory used at job-creation time:
// template coinbase sub-fields, the job's bound extranonce prefix, and its
// reward outputs.
func BuildCoinbaseTx(job StandardJob) *wire.MsgTx {
	tmpl := job.Template()

	scriptSig := make([]byte, 0, len(tmpl.CoinbasePrefix)+len(job.ExtranoncePrefix()))
	scriptSig = append(scriptSig, tmpl.CoinbasePrefix...)
	scriptSig = append(scriptSig, job.ExtranoncePrefix()...)

	tx := wire.NewMsgTx(tmpl.CoinbaseTxVersion)
	tx.LockTime = tmpl.CoinbaseTxLocktime
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: chainhash.Hash{}, Index: coinbaseNullIndex},
		SignatureScript:  scriptSig,
		Sequence:         tmpl.CoinbaseTxInputSequence,
		Witness:          wire.TxWitness{make([]byte, 32)},
	})
	for _, out := range job.CoinbaseOutputs() {
		tx.AddTxOut(out)
	}
	return tx
}

// SerializeCoinbase consensus-encodes the coinbase transaction reconstructed
// from job, including the segwit witness marker/flag (the job's single
// input always carries the 32-zero-byte witness per the coinbase
// construction contract).
func SerializeCoinbase(job StandardJob) ([]byte, error) {
	tx := BuildCoinbaseTx(job)
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return nil, fmt.Errorf("%w: coinbase serialization failed: %v", ErrJobFactory, err)
	}
	return buf.Bytes(), nil
}
