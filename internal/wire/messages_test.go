package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSTR0255RoundTrip(t *testing.T) {
	s := STR0255("worker.1")
	data := s.Serialize()
	assert.Equal(t, byte(len("worker.1")), data[0])

	got, n, err := ParseSTR0255(data)
	require.NoError(t, err)
	assert.Equal(t, s, got)
	assert.Equal(t, len(data), n)
}

func TestSTR0255TruncatesOversizedInput(t *testing.T) {
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	s := STR0255(long)
	data := s.Serialize()
	assert.Equal(t, byte(255), data[0])
	assert.Len(t, data, 256)
}

func TestParseSTR0255Truncated(t *testing.T) {
	_, _, err := ParseSTR0255([]byte{0x05, 0x01, 0x02})
	assert.ErrorIs(t, err, ErrTruncatedMessage)
}

func TestOpenStandardMiningChannelSerializeLength(t *testing.T) {
	m := OpenStandardMiningChannel{
		RequestID:         42,
		UserIdentity:      STR0255("worker.1"),
		NominalHashrate:   1.5,
		MaxTargetRequired: [32]byte{0xff},
	}
	data := m.Serialize()
	assert.Len(t, data, 4+1+len("worker.1")+4+32)
}

func TestSubmitSharesStandardMessageRoundTrip(t *testing.T) {
	m := SubmitSharesStandardMessage{
		ChannelID:      1,
		SequenceNumber: 2,
		JobID:          3,
		Nonce:          4,
		NTime:          5,
		Version:        6,
	}
	got, err := ParseSubmitSharesStandardMessage(m.Serialize())
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestParseSubmitSharesStandardMessageTruncated(t *testing.T) {
	_, err := ParseSubmitSharesStandardMessage(make([]byte, 10))
	assert.ErrorIs(t, err, ErrTruncatedMessage)
}

func TestSubmitSharesSuccessMessageSerializeLength(t *testing.T) {
	m := SubmitSharesSuccessMessage{ChannelID: 1, LastSequenceNumber: 2, NewSubmitsAccepted: 3, NewShareWorkSum: 4}
	assert.Len(t, m.Serialize(), 4+4+4+8)
}

func TestSubmitSharesErrorMessageSerializeIncludesErrorCode(t *testing.T) {
	m := SubmitSharesErrorMessage{ChannelID: 1, SequenceNumber: 2, ErrorCode: STR0255("stale-share")}
	data := m.Serialize()
	assert.Len(t, data, 4+4+1+len("stale-share"))
}

func TestNewMiningJobMessageSerializeLength(t *testing.T) {
	m := NewMiningJobMessage{ChannelID: 1, JobID: 2, Version: 3, MerkleRoot: [32]byte{0x01}}
	assert.Len(t, m.Serialize(), 4+4+4+32)
}

func TestSetNewPrevHashMessageSerializeLength(t *testing.T) {
	m := SetNewPrevHashMessage{ChannelID: 1, JobID: 2, PrevHash: [32]byte{0x01}, MinNTime: 3, NBits: 4}
	assert.Len(t, m.Serialize(), 4+4+32+4+4)
}
