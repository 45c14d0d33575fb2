// Package internal holds the session shape shared by the Transport
// Protocol and Extended Transport Protocol managers (spec.md §4.4: ETP has
// "identical state shape to TP"). It intentionally exports nothing outside
// the transport/ tree: TP and ETP keep distinct control-byte tables and
// timeout constants (spec.md §4.3 vs §4.4), only the session bookkeeping is
// shared.
package internal

import "github.com/OpenIsobus/OpenIsobus/pdu"

// State is the per-direction session state common to TP and ETP.
type State int

const (
	Idle State = iota
	Sending
	Receiving
)

// Session holds the bookkeeping for one in-flight TP or ETP transfer
// (spec.md §3 "TP/ETP Session"): at most one outbound and one inbound
// session may exist at a time per manager.
type Session struct {
	Peer         pdu.Address
	PGN          pdu.PGN
	TotalBytes   uint32
	TotalPackets uint32
	NextPacket   uint32 // 1-based: next packet to send, or next expected on receive
	Buffer       []byte // inbound reassembly only
	Deadline     uint64
	Source       pdu.PDU // outbound only: original PDU, kept for abort-retry/requeue
	Broadcast    bool    // outbound BAM vs directed RTS/CTS
}

// PacketsFor returns ceil(totalBytes/7), the number of 7-byte DT packets a
// transfer of totalBytes requires (spec.md §4.3 "compute N_packets").
func PacketsFor(totalBytes uint32) uint32 {
	return (totalBytes + 6) / 7
}
