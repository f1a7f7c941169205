package jobs

// Template is the upstream-sourced descriptor of candidate block work a
// template provider delivers to the channel. It is consumed once per job
// creation and is not retained beyond being embedded in the job it produced.
type Template struct {
	TemplateID      uint64
	FutureTemplate  bool
	Version         uint32
	CoinbaseTxVersion       int32
	CoinbasePrefix          []byte
	CoinbaseTxInputSequence uint32
	CoinbaseTxValueRemaining uint64
	CoinbaseTxOutputsCount   uint64
	// CoinbaseTxOutputs carries the raw serialized additional outputs the
	// template provider asks to be appended to the coinbase (e.g. the
	// segwit witness commitment). It is part of the wire message shape but,
	// per the channel's coinbase-construction contract, is not consumed by
	// the job factory: only the caller-supplied reward outputs are placed
	// into the constructed coinbase transaction.
	CoinbaseTxOutputs []byte
	CoinbaseTxLocktime uint32
	// MerklePath is the list of 32-byte hashes the coinbase txid is folded
	// against to produce the job's merkle root.
	MerklePath [][32]byte
}
