package jobs

import (
	"testing"

	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sv2pool/core/internal/chaintip"
)

func testTemplate(future bool, valueRemaining uint64) Template {
	return Template{
		TemplateID:               1,
		FutureTemplate:            future,
		Version:                   0x20000000,
		CoinbaseTxVersion:         2,
		CoinbasePrefix:            []byte{0x03, 0x01, 0x02, 0x03},
		CoinbaseTxInputSequence:   0xffffffff,
		CoinbaseTxValueRemaining: valueRemaining,
		CoinbaseTxLocktime:       0,
		MerklePath:               nil,
	}
}

func TestNewStandardJobFutureHasNoMinNtime(t *testing.T) {
	f := NewJobFactory()
	tmpl := testTemplate(true, 5_000_000_000)

	job, err := f.NewStandardJob(1, nil, []byte{0x00, 0x01}, tmpl, nil)
	require.NoError(t, err)

	assert.Equal(t, uint32(1), job.JobID())
	assert.Nil(t, job.MinNtime())
}

func TestNewStandardJobActiveInheritsTipTimestamp(t *testing.T) {
	f := NewJobFactory()
	tmpl := testTemplate(false, 5_000_000_000)
	tip := chaintip.New([32]byte{}, 0x1d00ffff, 1700000000)

	job, err := f.NewStandardJob(1, &tip, []byte{0x00, 0x01}, tmpl, nil)
	require.NoError(t, err)

	require.NotNil(t, job.MinNtime())
	assert.Equal(t, uint32(1700000000), *job.MinNtime())
}

func TestNewStandardJobRejectsOverspendingRewardOutputs(t *testing.T) {
	f := NewJobFactory()
	tmpl := testTemplate(true, 100)

	outs := []*wire.TxOut{{Value: 200, PkScript: []byte{0x6a}}}
	_, err := f.NewStandardJob(1, nil, nil, tmpl, outs)
	assert.ErrorIs(t, err, ErrJobFactory)
}

func TestNewStandardJobAllocatesMonotoneJobIDs(t *testing.T) {
	f := NewJobFactory()
	tmpl := testTemplate(true, 0)

	j1, err := f.NewStandardJob(1, nil, nil, tmpl, nil)
	require.NoError(t, err)
	j2, err := f.NewStandardJob(1, nil, nil, tmpl, nil)
	require.NoError(t, err)

	assert.Equal(t, uint32(1), j1.JobID())
	assert.Equal(t, uint32(2), j2.JobID())
}

func TestFoldMerkleWithNoBranchesReturnsCoinbaseHash(t *testing.T) {
	f := NewJobFactory()
	tmpl := testTemplate(true, 0)

	job, err := f.NewStandardJob(1, nil, nil, tmpl, nil)
	require.NoError(t, err)

	coinbaseTx := BuildCoinbaseTx(job)
	assert.Equal(t, [32]byte(coinbaseTx.TxHash()), job.MerkleRoot())
}
