package channel

import "errors"

// Configuration errors.
var (
	ErrInvalidNominalHashrate       = errors.New("channel: invalid nominal hashrate")
	ErrRequestedMaxTargetOutOfRange = errors.New("channel: target exceeds requested max target")
	ErrNewExtranoncePrefixTooLarge  = errors.New("channel: extranonce prefix exceeds max length")
)

// State errors.
var (
	ErrChainTipNotSet     = errors.New("channel: chain tip not set")
	ErrTemplateIDNotFound = errors.New("channel: template_id not found")
)

// Share validation errors — distinct and exhaustive per the validation
// algorithm's outcome set.
var (
	ErrStale             = errors.New("channel: job is stale")
	ErrInvalidJobID      = errors.New("channel: job_id not found")
	ErrNoChainTip        = errors.New("channel: no chain tip set")
	ErrDoesNotMeetTarget = errors.New("channel: share does not meet channel target")
	ErrDuplicateShare    = errors.New("channel: duplicate share")
	ErrInvalidCoinbase   = errors.New("channel: invalid coinbase reconstruction")
)

// MaxExtranonceLen bounds the per-channel extranonce prefix length.
const MaxExtranonceLen = 32
