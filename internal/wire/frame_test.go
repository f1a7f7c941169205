package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameHeaderRoundTrip(t *testing.T) {
	h := FrameHeader{ExtensionType: 0, MsgType: MsgTypeNewMiningJob, MsgLength: 0x010203}
	got, err := ParseHeader(h.Serialize())
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestParseHeaderTruncated(t *testing.T) {
	_, err := ParseHeader([]byte{0x01, 0x02})
	assert.ErrorIs(t, err, ErrInvalidHeader)
}

func TestFrameSerializeSetsLengthFromPayload(t *testing.T) {
	f := Frame{Header: FrameHeader{MsgType: MsgTypeSubmitSharesStandard}, Payload: []byte{1, 2, 3, 4, 5}}
	data := f.Serialize()
	assert.Len(t, data, HeaderSize+5)
	assert.EqualValues(t, 5, data[3])
}

func TestParseFrameRoundTrip(t *testing.T) {
	f := Frame{Header: FrameHeader{ExtensionType: 7, MsgType: MsgTypeSetNewPrevHash}, Payload: []byte("job-body")}
	data := f.Serialize()

	got, n, err := ParseFrame(data)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.Equal(t, uint16(7), got.Header.ExtensionType)
	assert.Equal(t, MsgTypeSetNewPrevHash, got.Header.MsgType)
	assert.Equal(t, []byte("job-body"), got.Payload)
}

func TestParseFrameTruncatedPayload(t *testing.T) {
	f := Frame{Header: FrameHeader{MsgType: MsgTypeSubmitSharesStandard}, Payload: []byte{1, 2, 3}}
	data := f.Serialize()

	_, _, err := ParseFrame(data[:HeaderSize+1])
	assert.ErrorIs(t, err, ErrTruncatedMessage)
}

func TestParseFrameConsumesOnlyItsOwnBytes(t *testing.T) {
	f := Frame{Header: FrameHeader{MsgType: MsgTypeNewMiningJob}, Payload: []byte{0xaa, 0xbb}}
	data := append(f.Serialize(), []byte{0xde, 0xad}...)

	got, n, err := ParseFrame(data)
	require.NoError(t, err)
	assert.Equal(t, HeaderSize+2, n)
	assert.Equal(t, []byte{0xaa, 0xbb}, got.Payload)
	assert.Equal(t, []byte{0xde, 0xad}, data[n:])
}
