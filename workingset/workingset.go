// Package workingset implements the VT working-set handshake and event
// translation (spec.md §4.6). Grounded on transport/tcp/connect.go's
// linear connect-state-machine shape (a named state per handshake step,
// advanced one response at a time), generalized from TCP's SYN/SYN-ACK
// exchange to ISOBUS's much longer VT capability-negotiation chain.
package workingset

import (
	"log"

	"github.com/OpenIsobus/OpenIsobus/isobus"
	"github.com/OpenIsobus/OpenIsobus/metrics"
	"github.com/OpenIsobus/OpenIsobus/pdu"
)

// State is a step in the VT handshake (spec.md §4.6).
type State int

const (
	Idle State = iota
	RequestedLanguageCommand
	RequestedGetHardwareResponse
	RequestedGetNumberOfSoftkeysResponse
	RequestedGetTextFontDataResponse
	RequestedGetVersionsResponse
	RequestedTimeDate
	RequestedVTVersion
	RequestedMemory
	SendingObjectPool
	ObjectPoolSend
	Connected
)

func (s State) String() string {
	names := [...]string{
		"Idle", "RequestedLanguageCommand", "RequestedGetHardwareResponse",
		"RequestedGetNumberOfSoftkeysResponse", "RequestedGetTextFontDataResponse",
		"RequestedGetVersionsResponse", "RequestedTimeDate", "RequestedVTVersion",
		"RequestedMemory", "SendingObjectPool", "ObjectPoolSend", "Connected",
	}
	if int(s) < len(names) {
		return names[s]
	}
	return "Unknown"
}

// maintenanceIntervalMs is the required heartbeat cadence (spec.md §4.6).
const maintenanceIntervalMs = 1000

// WorkingSet runs the VT handshake atop an Isobus facade and, once
// Connected, translates incoming VT messages into an event queue.
type WorkingSet struct {
	ib *isobus.Isobus

	state State
	vt    pdu.Address

	pool []byte

	nextMaintenance     uint64
	maintenanceSent     bool
	events              []Event
}

// New creates a WorkingSet that will offer pool once a VT is observed.
func New(ib *isobus.Isobus, pool []byte) *WorkingSet {
	return &WorkingSet{ib: ib, state: Idle, pool: pool}
}

// State returns the current handshake state.
func (w *WorkingSet) State() State {
	return w.state
}

// NextEvent dequeues the next translated VT event, in arrival order
// (spec.md §5 "Events delivered by next_event() appear in the order in
// which their source PDUs were seen on the wire").
func (w *WorkingSet) NextEvent() (Event, bool) {
	if len(w.events) == 0 {
		return Event{}, false
	}
	e := w.events[0]
	w.events = w.events[1:]
	return e, true
}

// Tick drains this tick's application PDUs from the facade, advances the
// handshake or event translation, then emits a maintenance heartbeat if
// due (spec.md §4.6).
func (w *WorkingSet) Tick(now uint64) {
	if !w.ib.IsConnected() {
		if w.state != Idle {
			// Disconnect (spec.md §4.6): claim lost, reset to Idle, keep
			// the event queue.
			log.Printf("workingset: Tick: address claim lost, resetting from %s to Idle", w.state)
			w.state = Idle
			w.maintenanceSent = false
		}
		return
	}

	for {
		p, ok := w.ib.NextPDU()
		if !ok {
			break
		}
		w.handle(p, now)
	}

	if w.state == SendingObjectPool && !w.ib.TransferInFlight() {
		w.sendEndOfObjectPool(now)
	}

	w.maybeSendMaintenance(now)
}

func (w *WorkingSet) maybeSendMaintenance(now uint64) {
	if w.state == Idle {
		return
	}
	if w.maintenanceSent && now < w.nextMaintenance {
		return
	}
	initiating := !w.maintenanceSent
	w.send(newMaintenance(w.localAddr(), initiating), now)
	w.maintenanceSent = true
	w.nextMaintenance = now + maintenanceIntervalMs
	metrics.WorkingSetState.Set(float64(w.state))
}

func (w *WorkingSet) localAddr() pdu.Address {
	return w.ib.ClaimedAddress()
}

func (w *WorkingSet) send(p pdu.PDU, now uint64) {
	if err := w.ib.Send(p, now); err != nil {
		log.Printf("workingset: send: %v", err)
	}
}

func (w *WorkingSet) handle(p pdu.PDU, now uint64) {
	if fn, ok := vtFunction(p); ok && fn == pdu.VTFnVTStatusMessage {
		w.handleVTStatus(p, now)
		return
	}
	if w.state == Connected {
		w.handleConnected(p, now)
		return
	}
	w.advanceHandshake(p, now)
}

func (w *WorkingSet) handleVTStatus(p pdu.PDU, now uint64) {
	if w.state == Idle {
		w.vt = pdu.Address(p.SA)
		w.startHandshake(now)
		return
	}
	if w.state == Connected && len(p.Data) >= 2 {
		active := pdu.Address(p.Data[1])
		if active == w.localAddr() {
			w.events = append(w.events, Event{Kind: OnActivate})
		} else {
			w.events = append(w.events, Event{Kind: OnDeactivate})
		}
	}
}

func (w *WorkingSet) startHandshake(now uint64) {
	local := w.localAddr()
	w.send(newWorkingSetMaster(w.ib.ClaimedName(), local), now)
	w.send(newMaintenance(local, true), now)
	w.maintenanceSent = true
	w.nextMaintenance = now + maintenanceIntervalMs
	w.send(pdu.NewRequest(pdu.PGNLanguage, local, w.vt), now)
	w.state = RequestedLanguageCommand
	metrics.WorkingSetState.Set(float64(w.state))
}

// advanceHandshake checks p against the response expected in the current
// state and, on a match, sends the next step's request (spec.md §4.6).
func (w *WorkingSet) advanceHandshake(p pdu.PDU, now uint64) {
	local := w.localAddr()
	fn, isVT := vtFunction(p)

	switch w.state {
	case RequestedLanguageCommand:
		if p.PGN() != pdu.PGNLanguage {
			return
		}
		w.send(newVTCommand(pdu.VTFnGetHardwareMessage, local, w.vt, nil), now)
		w.state = RequestedGetHardwareResponse

	case RequestedGetHardwareResponse:
		if !isVT || fn != pdu.VTFnGetHardwareMessage {
			return
		}
		w.send(newVTCommand(pdu.VTFnGetNumberOfSoftKeysMessage, local, w.vt, nil), now)
		w.state = RequestedGetNumberOfSoftkeysResponse

	case RequestedGetNumberOfSoftkeysResponse:
		if !isVT || fn != pdu.VTFnGetNumberOfSoftKeysMessage {
			return
		}
		w.send(newVTCommand(pdu.VTFnGetTextFontDataMessage, local, w.vt, nil), now)
		w.state = RequestedGetTextFontDataResponse

	case RequestedGetTextFontDataResponse:
		if !isVT || fn != pdu.VTFnGetTextFontDataMessage {
			return
		}
		w.send(newVTCommand(pdu.VTFnGetVersionsMessage, local, w.vt, nil), now)
		w.state = RequestedGetVersionsResponse

	case RequestedGetVersionsResponse:
		if !isVT || fn != pdu.VTFnGetVersionsResponse {
			return
		}
		w.send(pdu.NewRequest(pdu.PGNTimeDate, local, w.vt), now)
		w.state = RequestedTimeDate

	case RequestedTimeDate:
		if p.PGN() != pdu.PGNTimeDate {
			return
		}
		w.send(newVTCommand(pdu.VTFnGetMemoryMessage, local, w.vt, le32(0)), now)
		w.state = RequestedVTVersion

	case RequestedVTVersion:
		if !isVT || fn != pdu.VTFnGetMemoryMessage {
			return
		}
		w.send(newVTCommand(pdu.VTFnGetMemoryMessage, local, w.vt, le32(uint32(len(w.pool)))), now)
		w.state = RequestedMemory

	case RequestedMemory:
		if !isVT || fn != pdu.VTFnGetMemoryMessage {
			return
		}
		w.sendObjectPool(now)
		w.state = SendingObjectPool

	case ObjectPoolSend:
		if !isVT || fn != pdu.VTFnEndOfObjectPoolMessage {
			return
		}
		w.state = Connected
		metrics.WorkingSetState.Set(float64(w.state))
		return
	}
	metrics.WorkingSetState.Set(float64(w.state))
}

func (w *WorkingSet) sendObjectPool(now uint64) {
	local := w.localAddr()
	data := make([]byte, 0, 1+len(w.pool))
	data = append(data, pdu.VTFnObjectPoolTransferMessage)
	data = append(data, w.pool...)
	p := pdu.PDU{Priority: pdu.PriorityVT, PF: uint8(pdu.PGNECUToVT >> 8), PS: uint8(w.vt), SA: uint8(local), Data: data}
	if err := w.ib.Send(p, now); err != nil {
		log.Printf("workingset: sendObjectPool: %v", err)
	}
}

func (w *WorkingSet) sendEndOfObjectPool(now uint64) {
	w.send(newVTCommand(pdu.VTFnEndOfObjectPoolMessage, w.localAddr(), w.vt, nil), now)
	w.state = ObjectPoolSend
	metrics.WorkingSetState.Set(float64(w.state))
}

// handleConnected translates incoming VT messages into the event queue
// while the handshake is complete (spec.md §4.6).
func (w *WorkingSet) handleConnected(p pdu.PDU, now uint64) {
	fn, ok := vtFunction(p)
	if !ok || len(p.Data) < 2 {
		return
	}
	switch fn {
	case pdu.VTFnSoftKeyActivation:
		w.handleActivation(p, SoftKeyPressed, SoftKeyReleased, SoftKeyHeld)
	case pdu.VTFnButtonActivation:
		w.handleActivation(p, ButtonPressed, ButtonReleased, ButtonHeld)
	case pdu.VTFnChangeNumericValueMessage:
		w.handleNumericChange(p, now)
	case pdu.VTFnChangeStringValueMessage:
		w.handleStringChange(p, now)
	}
}

// handleActivation decodes a SoftKey/Button Activation payload: byte 1 is
// the activation code, bytes 2..3 the object id, bytes 4..5 the parent
// mask id, byte 6 the key number (spec.md §4.6; exact field layout beyond
// the function code is left to the implementer).
func (w *WorkingSet) handleActivation(p pdu.PDU, pressed, released, held EventKind) {
	if len(p.Data) < 7 {
		return
	}
	kind := activationKind(p.Data[1], pressed, released, held)
	w.events = append(w.events, Event{
		Kind:      kind,
		ObjectID:  decodeLE16(p.Data[2:4]),
		ParentID:  decodeLE16(p.Data[4:6]),
		KeyNumber: p.Data[6],
	})
}

func (w *WorkingSet) handleNumericChange(p pdu.PDU, now uint64) {
	if len(p.Data) < 7 {
		return
	}
	objID := decodeLE16(p.Data[1:3])
	value := uint32(p.Data[3]) | uint32(p.Data[4])<<8 | uint32(p.Data[5])<<16 | uint32(p.Data[6])<<24
	w.events = append(w.events, Event{Kind: NumericValueChanged, ObjectID: objID, U32Value: value})
	w.send(newVTCommand(pdu.VTFnChangeNumericValueMessage, w.localAddr(), w.vt, p.Data[1:]), now)
}

func (w *WorkingSet) handleStringChange(p pdu.PDU, now uint64) {
	if len(p.Data) < 4 {
		return
	}
	objID := decodeLE16(p.Data[1:3])
	n := int(p.Data[3])
	end := 4 + n
	if end > len(p.Data) {
		end = len(p.Data)
	}
	w.events = append(w.events, Event{Kind: StringValueChanged, ObjectID: objID, Str: string(p.Data[4:end])})
	w.send(newVTCommand(pdu.VTFnChangeStringValueMessage, w.localAddr(), w.vt, p.Data[1:end]), now)
}

// SendNumericValueChanged issues the ECU→VT command for a locally-driven
// numeric value change (VT fn 0xA8, spec.md §4.6 "Outgoing commands").
func (w *WorkingSet) SendNumericValueChanged(objectID uint16, value uint32, now uint64) error {
	payload := append(le16(objectID), byte(value), byte(value >> 8), byte(value >> 16), byte(value >> 24))
	return w.ib.Send(newVTCommand(pdu.VTFnChangeNumericValueCommand, w.localAddr(), w.vt, payload), now)
}

// SendStringValueChanged issues the ECU→VT command for a locally-driven
// string value change (VT fn 0xB3).
func (w *WorkingSet) SendStringValueChanged(objectID uint16, s string, now uint64) error {
	payload := append(le16(objectID), append([]byte{byte(len(s))}, s...)...)
	return w.ib.Send(newVTCommand(pdu.VTFnChangeStringValueCommand, w.localAddr(), w.vt, payload), now)
}

// SendActiveMaskChanged issues the ECU→VT command for a locally-driven
// active mask change (VT fn 0xAD).
func (w *WorkingSet) SendActiveMaskChanged(workingSetID, newMaskID uint16, now uint64) error {
	payload := append(le16(workingSetID), le16(newMaskID)...)
	return w.ib.Send(newVTCommand(pdu.VTFnChangeActiveMaskCommand, w.localAddr(), w.vt, payload), now)
}

func le32(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}
