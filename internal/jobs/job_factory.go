package jobs

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/sv2pool/core/internal/chaintip"
)

// coinbaseNullIndex is the consensus-mandated previous-output index for a
// coinbase transaction's single input.
const coinbaseNullIndex = 0xffffffff

// JobFactory builds StandardJob instances from templates, allocating
// monotonically increasing job_ids. A factory is owned by exactly one
// channel; it is never shared.
type JobFactory struct {
	nextJobID uint32
}

// NewJobFactory returns a factory with its job_id counter starting at 1.
// The counter is a plain uint32, not atomic: per the single-threaded
// ownership model, a factory is driven by exactly one caller at a time.
func NewJobFactory() *JobFactory {
	return &JobFactory{nextJobID: 0}
}

// NewStandardJob builds a StandardJob for channelID from template and
// coinbaseRewardOutputs. If chainTip is nil the job is Future (no min_ntime);
// otherwise it is Active with min_ntime set to chainTip's header timestamp.
func (f *JobFactory) NewStandardJob(
	channelID uint32,
	chainTip *chaintip.ChainTip,
	extranoncePrefix []byte,
	tmpl Template,
	coinbaseRewardOutputs []*wire.TxOut,
) (StandardJob, error) {
	var total uint64
	for _, out := range coinbaseRewardOutputs {
		if out.Value < 0 {
			return StandardJob{}, fmt.Errorf("%w: negative reward output value", ErrJobFactory)
		}
		next := total + uint64(out.Value)
		if next < total {
			return StandardJob{}, fmt.Errorf("%w: reward output value overflow", ErrJobFactory)
		}
		total = next
	}
	if total > tmpl.CoinbaseTxValueRemaining {
		return StandardJob{}, fmt.Errorf("%w: reward outputs sum %d exceeds value_remaining %d", ErrJobFactory, total, tmpl.CoinbaseTxValueRemaining)
	}

	scriptSig := make([]byte, 0, len(tmpl.CoinbasePrefix)+len(extranoncePrefix))
	scriptSig = append(scriptSig, tmpl.CoinbasePrefix...)
	scriptSig = append(scriptSig, extranoncePrefix...)

	tx := wire.NewMsgTx(tmpl.CoinbaseTxVersion)
	tx.LockTime = tmpl.CoinbaseTxLocktime
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: chainhash.Hash{}, Index: coinbaseNullIndex},
		SignatureScript:  scriptSig,
		Sequence:         tmpl.CoinbaseTxInputSequence,
		Witness:          wire.TxWitness{make([]byte, 32)},
	})
	for _, out := range coinbaseRewardOutputs {
		tx.AddTxOut(out)
	}

	coinbaseHash := tx.TxHash()
	merkleRoot := foldMerkle(coinbaseHash, tmpl.MerklePath)

	jobID := f.nextJobID + 1
	f.nextJobID = jobID

	job := StandardJob{
		jobID:            jobID,
		channelID:        channelID,
		merkleRoot:       merkleRoot,
		version:          tmpl.Version,
		template:         tmpl,
		coinbaseOutputs:  coinbaseRewardOutputs,
		extranoncePrefix: append([]byte(nil), extranoncePrefix...),
	}
	if chainTip != nil {
		ts := chainTip.HeaderTimestamp()
		job.minNtime = &ts
	}
	return job, nil
}

// foldMerkle performs the sequential merkle-branch fold: the coinbase hash
// is combined with each branch hash in turn via double-SHA256, one branch
// per level, rather than a full binary tree. This is the standard
// Sv2/Stratum mining merkle-recombination shape (the server pre-computes
// one branch per level from the full transaction set; the miner only ever
// re-hashes the coinbase).
func foldMerkle(coinbaseHash chainhash.Hash, branches [][32]byte) [32]byte {
	hash := coinbaseHash
	for _, branch := range branches {
		var buf [64]byte
		copy(buf[0:32], hash[:])
		copy(buf[32:64], branch[:])
		hash = chainhash.DoubleHashH(buf[:])
	}
	return hash
}
