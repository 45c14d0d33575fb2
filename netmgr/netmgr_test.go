package netmgr

import (
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mock_driver "github.com/OpenIsobus/OpenIsobus/driver/mock"
	"github.com/OpenIsobus/OpenIsobus/frame"
	"github.com/OpenIsobus/OpenIsobus/isoerr"
	"github.com/OpenIsobus/OpenIsobus/pdu"
)

// TestS2ClaimWithNoPeers covers scenario S2: with nobody else on the bus,
// Connect walks NotConnected -> RequestedClaimedAddresses -> ClaimingAddress
// -> AddressClaimed across the 250..260 ms hold at each of the two steps.
func TestS2ClaimWithNoPeers(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	drv := mock_driver.NewMockDriver(ctrl)

	m := NewManager(pdu.Name(0x1122334455667788))

	drv.EXPECT().Write(gomock.Any()).Times(1) // the initial Request PGN
	_, err := m.Connect(0x80, 0, drv)
	require.ErrorIs(t, err, isoerr.ErrWouldBlock)
	assert.Equal(t, RequestedClaimedAddresses, m.State)

	_, err = m.Connect(0x80, 100, drv)
	require.ErrorIs(t, err, isoerr.ErrWouldBlock)
	assert.Equal(t, RequestedClaimedAddresses, m.State, "jitter window (250..260ms) has not elapsed yet")

	drv.EXPECT().Write(gomock.Any()).Times(1) // Address Claimed at the candidate
	_, err = m.Connect(0x80, 260, drv)
	require.ErrorIs(t, err, isoerr.ErrWouldBlock)
	assert.Equal(t, ClaimingAddress, m.State)
	assert.EqualValues(t, 0x80, m.Claimed)

	claimed, err := m.Connect(0x80, 520, drv)
	require.NoError(t, err)
	assert.EqualValues(t, 0x80, claimed)
	assert.Equal(t, AddressClaimed, m.State)
	assert.True(t, m.IsConnected())

	claimed, err = m.Connect(0x80, 1000, drv)
	require.NoError(t, err)
	assert.EqualValues(t, 0x80, claimed, "Connect is idempotent once claimed")
}

// TestS3ArbitrationLoses covers scenario S3: a peer with a smaller Name
// claims the address we are mid-claim on, so we must concede and re-claim
// the next free candidate.
func TestS3ArbitrationLoses(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	drv := mock_driver.NewMockDriver(ctrl)

	m := NewManager(pdu.Name(0x9000000000000000))

	drv.EXPECT().Write(gomock.Any()).Times(1)
	_, err := m.Connect(0x80, 0, drv)
	require.ErrorIs(t, err, isoerr.ErrWouldBlock)

	drv.EXPECT().Write(gomock.Any()).Times(1)
	_, err = m.Connect(0x80, 260, drv)
	require.ErrorIs(t, err, isoerr.ErrWouldBlock)
	require.Equal(t, ClaimingAddress, m.State)
	require.EqualValues(t, 0x80, m.Claimed)

	smallerPeer := pdu.Name(0x1000000000000000)
	peerClaim := pdu.NewAddressClaimed(smallerPeer, 0x80, pdu.AddressGlobal)

	drv.EXPECT().Write(gomock.Any()).Times(1) // our re-claim at the new candidate
	m.Process(peerClaim, 260, drv)

	assert.Equal(t, ClaimingAddress, m.State)
	assert.EqualValues(t, 0x81, m.Claimed, "lost arbitration, re-claims the next free candidate")
}

// TestS3ArbitrationLosesAfterAddressClaimed covers spec.md's literal
// scenario S3: the competing claim arrives after we have already reached
// AddressClaimed (now=520, "after S2"), not merely while still mid-claim.
// Node manager must release 0x80, re-run candidate search, and claim 0x81.
func TestS3ArbitrationLosesAfterAddressClaimed(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	drv := mock_driver.NewMockDriver(ctrl)

	m := NewManager(pdu.Name(0x9000000000000000))

	drv.EXPECT().Write(gomock.Any()).Times(1)
	_, err := m.Connect(0x80, 0, drv)
	require.ErrorIs(t, err, isoerr.ErrWouldBlock)

	drv.EXPECT().Write(gomock.Any()).Times(1)
	_, err = m.Connect(0x80, 260, drv)
	require.ErrorIs(t, err, isoerr.ErrWouldBlock)

	claimed, err := m.Connect(0x80, 520, drv)
	require.NoError(t, err)
	require.EqualValues(t, 0x80, claimed)
	require.Equal(t, AddressClaimed, m.State)

	smallerPeer := pdu.Name(0x1000000000000000)
	peerClaim := pdu.NewAddressClaimed(smallerPeer, 0x80, pdu.AddressGlobal)

	drv.EXPECT().Write(gomock.Any()).Times(1) // our re-claim at the new candidate
	m.Process(peerClaim, 520, drv)

	assert.Equal(t, ClaimingAddress, m.State, "must release 0x80 and re-run candidate search")
	assert.EqualValues(t, 0x81, m.Claimed, "final table is {N' -> 0x80, N -> 0x81}")
}

// TestArbitrationWins covers invariant 6 in the other direction: our Name
// is smaller, so we must defend the claimed address by re-announcing it.
func TestArbitrationWins(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	drv := mock_driver.NewMockDriver(ctrl)

	m := NewManager(pdu.Name(0x1000000000000000))

	drv.EXPECT().Write(gomock.Any()).Times(1)
	_, _ = m.Connect(0x80, 0, drv)
	drv.EXPECT().Write(gomock.Any()).Times(1)
	_, _ = m.Connect(0x80, 260, drv)
	require.EqualValues(t, 0x80, m.Claimed)

	largerPeer := pdu.Name(0x9000000000000000)
	peerClaim := pdu.NewAddressClaimed(largerPeer, 0x80, pdu.AddressGlobal)

	var reAnnounced pdu.PDU
	drv.EXPECT().Write(gomock.Any()).DoAndReturn(func(f frame.Frame) error {
		reAnnounced = pdu.FromFrame(f)
		return nil
	}).Times(1)
	m.Process(peerClaim, 260, drv)

	assert.EqualValues(t, 0x80, m.Claimed, "keeps the address it already holds")
	assert.Equal(t, ClaimingAddress, m.State)

	name, ok := pdu.ClaimedName(reAnnounced)
	require.True(t, ok)
	assert.Equal(t, m.Name, name, "re-announces its own Name at the contested address")
}

func TestUnableToClaimWhenRangeExhausted(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	drv := mock_driver.NewMockDriver(ctrl)

	m := NewManager(pdu.Name(1))
	m.State = RequestedClaimedAddresses
	m.start = 0
	for a := int(pdu.ClaimRangeLow); a <= int(pdu.ClaimRangeHigh); a++ {
		m.nodes[pdu.Name(a)] = pdu.Address(a)
	}

	_, err := m.Connect(0x80, 1000, drv)
	require.ErrorIs(t, err, isoerr.ErrUnableToClaimAddress)
	assert.Equal(t, UnableToClaimAddress, m.State)
}

func TestProcessRequestRepliesWhenConnected(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	drv := mock_driver.NewMockDriver(ctrl)

	m := NewManager(pdu.Name(5))
	m.State = AddressClaimed
	m.Claimed = 0x80

	drv.EXPECT().Write(gomock.Any()).Times(1)

	req := pdu.NewRequest(pdu.PGNAddressClaimed, 0x25, pdu.AddressGlobal)
	m.Process(req, 0, drv)
}
