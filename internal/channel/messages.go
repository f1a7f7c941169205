package channel

// SetNewPrevHash is the upstream message announcing a new chain tip and
// activating a previously-registered future job.
type SetNewPrevHash struct {
	TemplateID      uint64
	PrevHash        [32]byte
	HeaderTimestamp uint32
	NBits           uint32
	// Target is the network target as embedded by the upstream message.
	// It is carried for wire completeness but is never consulted during
	// share validation: NBits is the consensus source of truth and is
	// decoded independently. See design notes on this intentional
	// divergence.
	Target [32]byte
}

// SubmitSharesStandard is a downstream share submission against a standard
// channel.
type SubmitSharesStandard struct {
	ChannelID      uint32
	SequenceNumber uint32
	JobID          uint32
	Nonce          uint32
	NTime          uint32
	Version        uint32
}

// ShareValidationResult is the outcome of a successful (non-error) share
// validation.
type ShareValidationResult struct {
	Kind ShareValidationKind

	// Populated when Kind == ValidWithAcknowledgement.
	LastSequenceNumber   uint32
	SharesAcceptedCount  uint64
	ShareWorkSum         uint64

	// Populated when Kind == BlockFound.
	TemplateID        *uint64
	SerializedCoinbase []byte
}

// ShareValidationKind enumerates the possible non-error share verdicts.
type ShareValidationKind int

const (
	// Valid is a share that met the channel target but does not warrant a
	// batch acknowledgement yet.
	Valid ShareValidationKind = iota
	// ValidWithAcknowledgement is a share that met the channel target and
	// lands on the batch-acknowledgement boundary.
	ValidWithAcknowledgement
	// BlockFound is a share whose header hash met the network target.
	BlockFound
)
