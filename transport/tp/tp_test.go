package tp

import (
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenIsobus/OpenIsobus/frame"
	mock_driver "github.com/OpenIsobus/OpenIsobus/driver/mock"
	"github.com/OpenIsobus/OpenIsobus/pdu"
)

func rtsFrom(peer, local uint8, totalBytes uint16, packets uint8, pgn pdu.PGN) pdu.PDU {
	return buildControl(pdu.TPControlRTS, peer, local, uint32(totalBytes), uint32(packets), 0xFF, pgn)
}

func dtFrom(peer uint8, seq byte, payload [7]byte) pdu.PDU {
	data := append([]byte{seq}, payload[:]...)
	return pdu.PDU{Priority: pdu.PriorityTransport, PF: tpdtPF, PS: 0x80, SA: peer, Data: data}
}

// TestS4ReceiveHundredBytePayload covers scenario S4 and invariant 5: a
// peer at 0x25 RTS-ing 100 bytes/15 packets to us (0x80) is answered with
// CTS, every DT is accepted in order, and the final DT's EoMA + the
// reassembled, unpadded 100-byte PDU are produced together.
func TestS4ReceiveHundredBytePayload(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	drv := mock_driver.NewMockDriver(ctrl)

	m := NewManager()
	m.LocalAddr = 0x80

	payload := make([]byte, 100)
	for i := range payload {
		payload[i] = byte(i)
	}

	var ctsSeen pdu.PDU
	drv.EXPECT().Write(gomock.Any()).DoAndReturn(func(f frame.Frame) error {
		ctsSeen = pdu.FromFrame(f)
		return nil
	}).Times(1)

	rts := rtsFrom(0x25, 0x80, 100, 15, pdu.PGNVTToECU)
	reassembled, sent := m.Process(&rts, 0, drv)
	require.Nil(t, reassembled)
	require.Nil(t, sent)

	require.Equal(t, pdu.TPControlCTS, ctsSeen.Data[0])
	assert.Equal(t, byte(15), ctsSeen.Data[1])
	assert.Equal(t, byte(1), ctsSeen.Data[2])

	for seq := byte(1); seq <= 14; seq++ {
		var chunk [7]byte
		copy(chunk[:], payload[int(seq-1)*7:])
		dt := dtFrom(0x25, seq, chunk)
		reassembled, sent = m.Process(&dt, 0, drv)
		require.Nil(t, reassembled)
		require.Nil(t, sent)
	}

	var eomaSeen pdu.PDU
	drv.EXPECT().Write(gomock.Any()).DoAndReturn(func(f frame.Frame) error {
		eomaSeen = pdu.FromFrame(f)
		return nil
	}).Times(1)

	var last [7]byte
	copy(last[:], payload[98:100]) // last packet carries 2 real bytes, 5 bytes of 0xFF padding
	for i := 2; i < 7; i++ {
		last[i] = 0xFF
	}
	dt15 := dtFrom(0x25, 15, last)
	reassembled, sent = m.Process(&dt15, 0, drv)
	require.NotNil(t, reassembled)
	require.Nil(t, sent)

	assert.Equal(t, pdu.PGNVTToECU, reassembled.PGN())
	assert.EqualValues(t, 0x25, reassembled.SA)
	assert.EqualValues(t, 0x80, reassembled.PS)
	assert.Equal(t, payload, reassembled.Data)

	require.Equal(t, pdu.TPControlEoMA, eomaSeen.Data[0])
}

func TestRTSCollisionRepliesAbort(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	drv := mock_driver.NewMockDriver(ctrl)

	m := NewManager()
	m.LocalAddr = 0x80

	first := rtsFrom(0x25, 0x80, 14, 2, pdu.PGNVTToECU)
	drv.EXPECT().Write(gomock.Any()).Times(1)
	m.Process(&first, 0, drv)

	var abortSeen pdu.PDU
	drv.EXPECT().Write(gomock.Any()).DoAndReturn(func(f frame.Frame) error {
		abortSeen = pdu.FromFrame(f)
		return nil
	}).Times(1)

	second := rtsFrom(0x26, 0x80, 14, 2, pdu.PGNECUToVT)
	m.Process(&second, 0, drv)

	require.Equal(t, pdu.TPControlAbort, abortSeen.Data[0])
	assert.EqualValues(t, pdu.AbortAlreadyConnected, abortSeen.Data[1])
}

func TestBroadcastSendWritesBAMThenAllDT(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	drv := mock_driver.NewMockDriver(ctrl)

	m := NewManager()
	m.LocalAddr = 0x80

	var frames []pdu.PDU
	drv.EXPECT().Write(gomock.Any()).DoAndReturn(func(f frame.Frame) error {
		frames = append(frames, pdu.FromFrame(f))
		return nil
	}).Times(3) // BAM + 2 DT for a 9-byte payload

	p := pdu.PDU{Priority: pdu.PriorityVT, PF: uint8(pdu.PGNWorkingSetMaster >> 8), PS: uint8(pdu.AddressGlobal), SA: 0x80, Data: make([]byte, 9)}
	err := m.Send(p, 0, drv)
	require.NoError(t, err)

	require.Len(t, frames, 3)
	assert.Equal(t, pdu.TPControlBAM, frames[0].Data[0])
	assert.Equal(t, byte(1), frames[1].Data[0])
	assert.Equal(t, byte(2), frames[2].Data[0])
}

// TestBacklogDrainsInOrder covers invariant 9 for TP's outbound path: a
// second Send while one session is open queues rather than opening a
// second RTS, and is sent once the first session's EoMA arrives.
func TestBacklogDrainsInOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	drv := mock_driver.NewMockDriver(ctrl)

	m := NewManager()
	m.LocalAddr = 0x80

	first := pdu.PDU{PF: 0xE7, PS: 0x25, SA: 0x80, Data: make([]byte, 20)}
	second := pdu.PDU{PF: 0xE7, PS: 0x25, SA: 0x80, Data: make([]byte, 30)}

	drv.EXPECT().Write(gomock.Any()).Times(1) // first's RTS
	require.NoError(t, m.Send(first, 0, drv))
	require.NoError(t, m.Send(second, 0, drv)) // queued, no write yet
	assert.True(t, m.HasOutboundSession())

	var secondRTS pdu.PDU
	drv.EXPECT().Write(gomock.Any()).DoAndReturn(func(f frame.Frame) error {
		secondRTS = pdu.FromFrame(f)
		return nil
	}).Times(1)

	eoma := buildControl(pdu.TPControlEoMA, 0x25, 0x80, 20, 3, 0xFF, pdu.PGN(0xE700|0x25))
	_, sent := m.Process(&eoma, 0, drv)
	require.NotNil(t, sent)
	assert.Equal(t, first.Data, sent.Data)

	require.Equal(t, pdu.TPControlRTS, secondRTS.Data[0])
	assert.EqualValues(t, 30, le16(secondRTS.Data[1], secondRTS.Data[2]))
}
