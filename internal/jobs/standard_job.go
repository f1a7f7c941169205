package jobs

import "github.com/btcsuite/btcd/wire"

// NewMiningJob is the outbound message shape derived from a StandardJob:
// everything a downstream mining device needs to start hashing.
type NewMiningJob struct {
	ChannelID  uint32
	JobID      uint32
	MerkleRoot [32]byte
	Version    uint32
	// MinNtime is nil for a future job, and set to the activating tip's
	// header timestamp once the job has been activated.
	MinNtime *uint32
}

// StandardJob is a realized work unit bound to one channel. It retains
// enough provenance (template, reward outputs, extranonce prefix) to
// reconstruct the coinbase transaction if a submitted share turns out to
// satisfy the network target.
type StandardJob struct {
	jobID             uint32
	channelID         uint32
	merkleRoot        [32]byte
	version           uint32
	minNtime          *uint32
	template          Template
	coinbaseOutputs   []*wire.TxOut
	extranoncePrefix  []byte
}

// JobID returns the job's monotone, per-channel identifier.
func (j StandardJob) JobID() uint32 { return j.jobID }

// ChannelID returns the channel this job was built for.
func (j StandardJob) ChannelID() uint32 { return j.channelID }

// MerkleRoot returns the job's merkle root in internal (non-display-reversed)
// byte order, matching the order block headers store it in.
func (j StandardJob) MerkleRoot() [32]byte { return j.merkleRoot }

// Version returns the block version template the job was built from.
func (j StandardJob) Version() uint32 { return j.version }

// MinNtime returns the job's minimum ntime bound, or nil if the job has not
// yet been activated (a future job).
func (j StandardJob) MinNtime() *uint32 { return j.minNtime }

// Template returns the template the job was built from.
func (j StandardJob) Template() Template { return j.template }

// CoinbaseOutputs returns the reward outputs embedded in the job's coinbase
// transaction. Callers must not mutate the returned slice's outputs.
func (j StandardJob) CoinbaseOutputs() []*wire.TxOut { return j.coinbaseOutputs }

// ExtranoncePrefix returns the per-channel extranonce prefix bound into the
// job's coinbase script_sig at creation time.
func (j StandardJob) ExtranoncePrefix() []byte { return j.extranoncePrefix }

// JobMessage renders the job as the outbound NewMiningJob shape.
func (j StandardJob) JobMessage() NewMiningJob {
	return NewMiningJob{
		ChannelID:  j.channelID,
		JobID:      j.jobID,
		MerkleRoot: j.merkleRoot,
		Version:    j.version,
		MinNtime:   j.minNtime,
	}
}

// activate sets the job's min_ntime to the activating tip's header
// timestamp, mutating a future job into an active one. Only the job store
// calls this, at the moment a future job is promoted.
func (j *StandardJob) activate(headerTimestamp uint32) {
	ts := headerTimestamp
	j.minNtime = &ts
}
