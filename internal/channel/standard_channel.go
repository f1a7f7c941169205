// Package channel implements the Standard Channel state machine: the
// top-level orchestrator mediating between an upstream template/prev-hash
// feed and a downstream mining device, producing jobs and validating
// submitted shares against both the channel's and the network's target.
package channel

import (
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/sv2pool/core/internal/chaintip"
	"github.com/sv2pool/core/internal/jobs"
	"github.com/sv2pool/core/internal/shareaccounting"
	"github.com/sv2pool/core/internal/target"
)

// StandardChannel is the per-miner channel state: identity, target
// configuration, job store, share accounting, and the current chain tip.
// It carries no internal synchronization — per the single-threaded
// ownership model, exactly one caller at a time drives a given channel's
// methods; a hosting server provides the exclusion (one goroutine, one
// mutex, or one actor per channel).
type StandardChannel struct {
	channelID            uint32
	userIdentity         string
	extranoncePrefix     []byte
	requestedMaxTarget   target.Target
	channelTarget        target.Target
	nominalHashrate      float64
	expectedSharePerMin  float64
	shareAccounting      *shareaccounting.ShareAccounting
	jobFactory           *jobs.JobFactory
	jobStore             jobs.JobStore
	chainTip             *chaintip.ChainTip
}

// New constructs a StandardChannel, deriving its initial target from
// nominalHashrate and expectedSharePerMinute and rejecting configurations
// that exceed requestedMaxTarget.
func New(
	channelID uint32,
	userIdentity string,
	extranoncePrefix []byte,
	requestedMaxTarget target.Target,
	nominalHashrate float64,
	shareBatchSize uint64,
	expectedSharePerMinute float64,
	jobStore jobs.JobStore,
) (*StandardChannel, error) {
	t, err := target.HashrateToTarget(nominalHashrate, expectedSharePerMinute)
	if err != nil {
		return nil, ErrInvalidNominalHashrate
	}
	if !t.LessOrEqual(requestedMaxTarget) {
		return nil, ErrRequestedMaxTargetOutOfRange
	}

	return &StandardChannel{
		channelID:           channelID,
		userIdentity:        userIdentity,
		extranoncePrefix:    append([]byte(nil), extranoncePrefix...),
		requestedMaxTarget:  requestedMaxTarget,
		channelTarget:       t,
		nominalHashrate:     nominalHashrate,
		expectedSharePerMin: expectedSharePerMinute,
		shareAccounting:     shareaccounting.New(shareBatchSize),
		jobFactory:          jobs.NewJobFactory(),
		jobStore:            jobStore,
	}, nil
}

// ChannelID returns the channel's identifier.
func (c *StandardChannel) ChannelID() uint32 { return c.channelID }

// UserIdentity returns the channel's user identity string.
func (c *StandardChannel) UserIdentity() string { return c.userIdentity }

// ExtranoncePrefix returns the channel's current extranonce prefix.
func (c *StandardChannel) ExtranoncePrefix() []byte { return c.extranoncePrefix }

// RequestedMaxTarget returns the caller-declared maximum target ceiling.
func (c *StandardChannel) RequestedMaxTarget() target.Target { return c.requestedMaxTarget }

// Target returns the channel's current target.
func (c *StandardChannel) Target() target.Target { return c.channelTarget }

// NominalHashrate returns the channel's declared hashrate.
func (c *StandardChannel) NominalHashrate() float64 { return c.nominalHashrate }

// SharesPerMinute returns the channel's expected share rate.
func (c *StandardChannel) SharesPerMinute() float64 { return c.expectedSharePerMin }

// ChainTip returns the channel's current chain tip, or nil if none has been
// set yet.
func (c *StandardChannel) ChainTip() *chaintip.ChainTip { return c.chainTip }

// ShareAccounting returns the channel's share accounting state.
func (c *StandardChannel) ShareAccounting() *shareaccounting.ShareAccounting { return c.shareAccounting }

// ActiveJob returns the channel's current active job, if any.
func (c *StandardChannel) ActiveJob() (jobs.StandardJob, bool) { return c.jobStore.ActiveJob() }

// FutureJobs returns a snapshot of the channel's future jobs.
func (c *StandardChannel) FutureJobs() map[uint32]jobs.StandardJob { return c.jobStore.FutureJobs() }

// PastJobs returns a snapshot of the channel's past jobs.
func (c *StandardChannel) PastJobs() map[uint32]jobs.StandardJob { return c.jobStore.PastJobs() }

// StaleJobs returns a snapshot of the channel's stale jobs.
func (c *StandardChannel) StaleJobs() map[uint32]jobs.StandardJob { return c.jobStore.StaleJobs() }

// SetExtranoncePrefix replaces the channel's extranonce prefix, rejecting
// prefixes longer than MaxExtranonceLen.
func (c *StandardChannel) SetExtranoncePrefix(prefix []byte) error {
	if len(prefix) > MaxExtranonceLen {
		return ErrNewExtranoncePrefixTooLarge
	}
	c.extranoncePrefix = append([]byte(nil), prefix...)
	return nil
}

// UpdateChannel recomputes the channel's target from a new nominal hashrate
// and, optionally, a new requested max target (defaulting to the cached
// value). The new target must be computed before any field is mutated: on
// failure the channel's target, hashrate, and max target are all left
// unchanged.
func (c *StandardChannel) UpdateChannel(nominalHashrate float64, requestedMaxTarget *target.Target) error {
	newTarget, err := target.HashrateToTarget(nominalHashrate, c.expectedSharePerMin)
	if err != nil {
		return ErrInvalidNominalHashrate
	}

	maxTarget := c.requestedMaxTarget
	if requestedMaxTarget != nil {
		maxTarget = *requestedMaxTarget
	}

	if !newTarget.LessOrEqual(maxTarget) {
		return ErrRequestedMaxTargetOutOfRange
	}

	c.channelTarget = newTarget
	c.nominalHashrate = nominalHashrate
	c.requestedMaxTarget = maxTarget
	return nil
}

// OnNewTemplate builds a job from template and coinbaseRewardOutputs and
// records it: future templates become future jobs, non-future templates
// require a chain tip and become the active job.
func (c *StandardChannel) OnNewTemplate(tmpl jobs.Template, coinbaseRewardOutputs []*wire.TxOut) error {
	if tmpl.FutureTemplate {
		job, err := c.jobFactory.NewStandardJob(c.channelID, nil, c.extranoncePrefix, tmpl, coinbaseRewardOutputs)
		if err != nil {
			return err
		}
		c.jobStore.AddFutureJob(tmpl.TemplateID, job)
		return nil
	}

	if c.chainTip == nil {
		return ErrChainTipNotSet
	}
	job, err := c.jobFactory.NewStandardJob(c.channelID, c.chainTip, c.extranoncePrefix, tmpl, coinbaseRewardOutputs)
	if err != nil {
		return err
	}
	c.jobStore.AddActiveJob(job)
	return nil
}

// OnSetNewPrevHash activates the future job registered under msg.TemplateID
// and replaces the channel's chain tip.
func (c *StandardChannel) OnSetNewPrevHash(msg SetNewPrevHash) error {
	if len(c.jobStore.FutureJobs()) == 0 {
		return ErrTemplateIDNotFound
	}
	if err := c.jobStore.ActivateFutureJob(msg.TemplateID, msg.HeaderTimestamp); err != nil {
		return ErrTemplateIDNotFound
	}

	tip := chaintip.New(msg.PrevHash, msg.NBits, msg.HeaderTimestamp)
	c.chainTip = &tip
	return nil
}

// ValidateShare runs the deterministic 8-step share validation algorithm:
// resolve the job, require a chain tip, reconstruct the block header, hash
// it, check the network target first, then the channel target, updating
// share accounting on every accepted path.
func (c *StandardChannel) ValidateShare(share SubmitSharesStandard) (ShareValidationResult, error) {
	job, err := c.resolveJob(share.JobID)
	if err != nil {
		return ShareValidationResult{}, err
	}

	if c.chainTip == nil {
		return ShareValidationResult{}, ErrNoChainTip
	}
	tip := *c.chainTip

	header := wire.BlockHeader{
		Version:    int32(share.Version),
		PrevBlock:  chainhash.Hash(tip.PrevHash()),
		MerkleRoot: chainhash.Hash(job.MerkleRoot()),
		Timestamp:  time.Unix(int64(share.NTime), 0).UTC(),
		Bits:       tip.NBits(),
		Nonce:      share.Nonce,
	}

	blockHash := header.BlockHash()
	hashAsTarget := target.Target(blockHash)
	networkTarget := target.DecodeCompact(tip.NBits())

	if hashAsTarget.LessOrEqual(networkTarget) {
		difficulty := uint64(target.ToDifficulty(c.channelTarget))
		c.shareAccounting.UpdateShareAccounting(difficulty, share.SequenceNumber, [32]byte(blockHash))

		serialized, err := jobs.SerializeCoinbase(job)
		if err != nil {
			return ShareValidationResult{}, ErrInvalidCoinbase
		}

		templateID := job.Template().TemplateID
		return ShareValidationResult{
			Kind:               BlockFound,
			TemplateID:         &templateID,
			SerializedCoinbase: serialized,
		}, nil
	}

	if hashAsTarget.LessOrEqual(c.channelTarget) {
		if c.shareAccounting.IsShareSeen([32]byte(blockHash)) {
			return ShareValidationResult{}, ErrDuplicateShare
		}

		difficulty := uint64(target.ToDifficulty(c.channelTarget))
		c.shareAccounting.UpdateShareAccounting(difficulty, share.SequenceNumber, [32]byte(blockHash))

		hashAsDiff := target.ToDifficulty(hashAsTarget)
		c.shareAccounting.UpdateBestDiff(hashAsDiff)

		if c.shareAccounting.ShouldAcknowledge() {
			return ShareValidationResult{
				Kind:                ValidWithAcknowledgement,
				LastSequenceNumber:  c.shareAccounting.LastSequenceNumber(),
				SharesAcceptedCount: c.shareAccounting.SharesAccepted(),
				ShareWorkSum:        c.shareAccounting.ShareWorkSum(),
			}, nil
		}
		return ShareValidationResult{Kind: Valid}, nil
	}

	return ShareValidationResult{}, ErrDoesNotMeetTarget
}

func (c *StandardChannel) resolveJob(jobID uint32) (jobs.StandardJob, error) {
	if _, ok := c.jobStore.LookupStaleJob(jobID); ok {
		return jobs.StandardJob{}, ErrStale
	}

	if active, ok := c.jobStore.ActiveJob(); ok && active.JobID() == jobID {
		return active, nil
	}
	if past, ok := c.jobStore.LookupPastJob(jobID); ok {
		return past, nil
	}

	return jobs.StandardJob{}, fmt.Errorf("%w: %d", ErrInvalidJobID, jobID)
}
