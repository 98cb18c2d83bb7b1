package xeno

import (
	"fmt"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/xeno.go/pkg/framework"
)

// DeliveryObserver can be implemented by a Dispatcher to learn the fate
// of messages submitted with demandsAck.
type DeliveryObserver interface {
	OnDelivered(MessageID)
	OnDeliveryFailed(MessageID, error)
}

// Stats are the counters of a Session.
type Stats struct {
	FramesDecoded       int
	FramesSent          int
	FramingErrors       int
	UnknownTypes        int
	ArgDecodeErrors     int
	Dispatched          int
	SyncPacketsReceived int
	SyncPacketsSent     int
	Desyncs             int
	Retries             int
	Acked               int
	AckTimeouts         int
	Inbound             int
	Outbound            int
	Pool                PoolStats
}

// Session is the per-connection state machine. It decodes received bytes,
// keeps track of frame alignment, and runs the ACK/retry flow of outbound
// messages.
//
// A Session is not reentrant and not safe for concurrent use: bytes,
// timer ticks and submissions must all come from one processing context
// (see Link). The Transport must not feed bytes back synchronously.
type Session struct {
	conf       Config
	dispatcher Dispatcher
	observer   DeliveryObserver
	transport  Transport

	state    SessionState
	pool     *Pool
	inbound  *Queue
	outbound *Queue
	current  *Message
	acc      []byte

	nextID MessageID
	now    time.Time

	syncTimer     fx.Schedule
	syncSeen      bool
	answerSync    bool
	parseFailures int
	ackFailures   int

	selfDescribed bool
	peerIdentity  []byte
	established   bool
	lost          bool

	stats Stats
}

// NewSession creates a Session with its own Pool.
func NewSession(conf Config, d Dispatcher, t Transport) *Session {
	conf = conf.withDefaults()
	return NewSessionWithPool(conf, NewPool(conf.PoolSize), d, t)
}

// NewSessionWithPool creates a Session drawing messages from pool.
func NewSessionWithPool(conf Config, pool *Pool, d Dispatcher, t Transport) *Session {
	conf = conf.withDefaults()
	s := &Session{
		conf:       conf,
		dispatcher: d,
		transport:  t,
		pool:       pool,
		inbound:    NewQueue(conf.QueueCapacity),
		outbound:   NewQueue(conf.QueueCapacity),
		nextID:     NewMessageID(),
		acc:        make([]byte, 0, 2*SyncMarkerLen),
	}
	s.observer, _ = d.(DeliveryObserver)
	return s
}

// State returns the dialog and sync phases.
func (s *Session) State() SessionState {
	return s.state
}

// PeerIdentity returns the identity the peer sent in SelfDescribe.
func (s *Session) PeerIdentity() []byte {
	return s.peerIdentity
}

// Stats returns the session counters.
func (s *Session) Stats() Stats {
	st := s.stats
	st.Inbound, st.Outbound = s.inbound.Len(), s.outbound.Len()
	st.Pool = s.pool.Stats()
	return st
}

// Connected tells the session the transport is up. The session starts
// with a sync handshake.
func (s *Session) Connected(now time.Time) {
	s.now = now
	if !s.setDialog(DialogConnected) {
		return
	}
	s.enterDesync(InitiatorDesync, "link up")
}

// LinkLost tells the session the transport went away.
func (s *Session) LinkLost() {
	s.lose(DialogDisconnected, ErrLinkLost)
}

// Hangup starts an orderly teardown. An established session tells the
// peer and waits for the acknowledgement; any other open session is hung
// up at once.
func (s *Session) Hangup() error {
	switch {
	case s.state.Dialog.Closed():
		return ErrSessionClosed
	case s.state.Dialog == DialogEstablished:
		s.setDialog(DialogPendingHangup)
		if err := s.sendSession(TypeHangup, nil, true, false); err != nil {
			s.lose(DialogHungup, ErrHungup)
			return err
		}
		s.flush()
	case s.state.Dialog != DialogPendingHangup:
		s.lose(DialogHungup, ErrHungup)
	}
	return nil
}

// Resync forces this side into InitiatorDesync.
func (s *Session) Resync() {
	if !s.state.Sync.Desynced() {
		s.enterDesync(InitiatorDesync, "requested")
	}
}

// Submit queues an event for sending and returns its id. With demandsAck
// the message stays queued until the peer replies or retries run out.
// demandsAck must match the Schema of the type: the frame carries no ack
// flag and the peer replies according to its Schema.
func (s *Session) Submit(ev Event, demandsAck bool) (MessageID, error) {
	if s.state.Dialog.Closed() {
		return 0, ErrSessionClosed
	}
	schema, err := s.dispatcher.LookupTypeDef(ev.TypeCode())
	if err != nil {
		return 0, err
	}
	if schema.DemandsAck != demandsAck {
		return 0, fmt.Errorf("%w: type %04x", ErrAckMismatch, uint16(ev.TypeCode()))
	}
	m := s.pool.Fetch()
	m.ID, m.DemandsAck = s.allocID(), demandsAck
	if err := serializeInto(m, s.dispatcher, ev); err != nil {
		s.reclaim(m)
		return 0, err
	}
	m.State = AwaitingSend
	if err := s.outbound.PushBack(m); err != nil {
		s.reclaim(m)
		return 0, err
	}
	s.flush()
	return m.ID, nil
}

// OnBytesReceived feeds bytes from the transport. All per-message errors
// are absorbed here.
func (s *Session) OnBytesReceived(data []byte) {
	if s.state.Dialog.Closed() {
		glog.V(3).Infof("%s: drop %d bytes, session %s", s.conf.Name, len(data), s.state)
		return
	}
	if glog.V(4) {
		glog.Infof("%s: RCV % x", s.conf.Name, data)
	}
	s.acc = append(s.acc, data...)
	buf := s.acc
	// every pass either shrinks buf or leaves the loop.
	for len(buf) > 0 && !s.state.Dialog.Closed() {
		if s.state.Sync.Desynced() {
			rest, found := ScanBufferForSync(buf)
			buf = rest
			if !found {
				break
			}
			s.stats.SyncPacketsReceived++
			s.enterPendingExit(s.state.Sync == InitiatedDesync)
			continue
		}
		if s.state.Sync == PendingExit && s.current == nil {
			if n := LocateSyncBreak(buf); n > 0 {
				s.stats.SyncPacketsReceived += n / SyncMarkerLen
				s.syncSeen = true
				buf = buf[n:]
				continue
			}
		}
		if s.current == nil {
			s.current = s.pool.Fetch()
			s.current.MaxLength = uint32(s.conf.MaxFrameLength)
		}
		n := s.current.Feed(buf)
		if n == 0 {
			break
		}
		buf = buf[n:]
		s.afterFeed()
	}
	if s.state.Dialog.Closed() {
		s.acc = s.acc[:0]
		return
	}
	s.acc = append(s.acc[:0], buf...)
	s.flush()
}

// Tick advances the session timers to now.
func (s *Session) Tick(now time.Time) {
	s.now = now
	if s.state.Dialog.Closed() {
		return
	}
	switch s.syncTimer.Poll(now) {
	case fx.ScheduleFire:
		switch {
		case s.state.Sync.Desynced():
			s.sendSync()
		case s.state.Sync == PendingExit && !s.syncSeen:
			s.exitDesync("peer quiesced")
		default:
			// the peer is still sending markers.
			s.syncSeen = false
			if s.answerSync {
				s.sendSync()
			}
		}
	case fx.ScheduleExpired:
		if s.state.Sync.Desynced() {
			glog.Errorf("%s: no sync after %d markers", s.conf.Name, s.conf.SyncRetries)
			s.lose(DialogHungup, ErrSyncExhausted)
			return
		}
	}
	if s.state.Sync == Synced {
		s.pollAcks(now)
	}
	s.flush()
}

func (s *Session) allocID() MessageID {
	id := s.nextID
	s.nextID = id.Next()
	return id
}

func (s *Session) reclaim(m *Message) {
	if err := s.pool.Reclaim(m); err != nil {
		glog.Errorf("%s: reclaim %s: %v", s.conf.Name, m, err)
	}
}

func (s *Session) setDialog(next DialogPhase) bool {
	prev := s.state.Dialog
	if !prev.CanTransit(next) {
		glog.V(2).Infof("%s: ignore dialog %s -> %s", s.conf.Name, prev, next)
		return false
	}
	s.state.Dialog = next
	glog.V(1).Infof("%s: dialog %s -> %s", s.conf.Name, prev, next)
	if next == DialogEstablished && !s.established {
		s.established = true
		s.dispatcher.OnSessionEstablished()
	}
	return true
}

func (s *Session) setSync(next SyncPhase) {
	prev := s.state.Sync
	if !prev.CanTransit(next) {
		glog.Warningf("%s: unexpected sync %s -> %s", s.conf.Name, prev, next)
	}
	s.state.Sync = next
	glog.V(1).Infof("%s: sync %s -> %s", s.conf.Name, prev, next)
}

// enterDesync abandons whatever is being received and starts sending
// sync markers.
func (s *Session) enterDesync(phase SyncPhase, reason string) {
	if s.state.Dialog.Closed() {
		return
	}
	glog.Warningf("%s: desync (%s): %s", s.conf.Name, phase, reason)
	if s.current != nil {
		s.reclaim(s.current)
		s.current = nil
	}
	s.setSync(phase)
	s.parseFailures, s.ackFailures = 0, 0
	s.syncSeen = false
	s.stats.Desyncs++
	s.sendSync()
	s.syncTimer.Arm(s.now, s.conf.SyncPeriod, s.conf.SyncRetries-1)
}

// enterPendingExit stops sending markers. With answer, the markers the
// peer keeps sending are answered once per period, as the peer may have
// missed ours.
func (s *Session) enterPendingExit(answer bool) {
	s.setSync(PendingExit)
	s.syncSeen, s.answerSync = false, answer
	s.syncTimer.Arm(s.now, s.conf.SyncPeriod, -1)
}

func (s *Session) exitDesync(reason string) {
	s.setSync(Synced)
	s.syncTimer.Disarm()
	glog.V(1).Infof("%s: synced (%s)", s.conf.Name, reason)
	if s.state.Dialog == DialogConnected {
		s.setDialog(DialogPendingSetup)
		s.sendSelfDescribe()
	}
}

func (s *Session) sendSync() {
	s.stats.SyncPacketsSent++
	if err := s.transport.Send(SyncMarker()); err != nil {
		glog.Errorf("%s: send sync: %v", s.conf.Name, err)
	}
}

func (s *Session) afterFeed() {
	m := s.current
	if !m.State.Terminal() {
		return
	}
	s.current = nil
	switch m.State {
	case SyncPacket:
		s.stats.SyncPacketsReceived++
		s.reclaim(m)
		switch s.state.Sync {
		case Synced:
			// the marker itself is the peer's sync, answered by enterDesync.
			s.enterDesync(InitiatedDesync, "peer sent sync")
			s.enterPendingExit(true)
		case PendingExit:
			s.syncSeen = true
		}
	case AwaitingDecode:
		s.stats.FramesDecoded++
		glog.V(3).Infof("%s: decoded %s", s.conf.Name, m)
		if s.state.Sync == PendingExit {
			s.exitDesync("clean frame")
		}
		if err := s.inbound.PushBack(m); err != nil {
			glog.Warningf("%s: drop %s: %v", s.conf.Name, m, err)
			s.reclaim(m)
		}
		// frames are handled in order with the bytes that follow them:
		// a handled frame may change the sync phase.
		s.processInbound()
	case Error:
		s.stats.FramingErrors++
		glog.Warningf("%s: %v", s.conf.Name, m.Err)
		s.reclaim(m)
		s.parseFailed()
	}
}

func (s *Session) parseFailed() {
	s.parseFailures++
	if s.parseFailures >= s.conf.MaxParseFailures && !s.state.Sync.Desynced() {
		s.enterDesync(InitiatorDesync, "too many parse failures")
	}
}

func (s *Session) processInbound() {
	for s.inbound.Len() > 0 {
		m := s.inbound.PopFront()
		if !s.state.Dialog.Closed() {
			s.handleInbound(m)
		}
		s.reclaim(m)
	}
}

func (s *Session) handleInbound(m *Message) {
	switch m.Code {
	case TypeReply:
		s.parseFailures = 0
		s.handleReply(m.ID)
	case TypeHangup:
		s.reply(m.ID)
		s.flush()
		s.lose(DialogHungup, ErrHungup)
	case TypeSelfDescribe:
		s.parseFailures = 0
		s.reply(m.ID)
		s.peerIdentity = append(s.peerIdentity[:0], m.Payload...)
		s.peerDescribed()
	default:
		s.dispatch(m)
	}
}

func (s *Session) dispatch(m *Message) {
	schema, err := s.dispatcher.LookupTypeDef(m.Code)
	if err != nil {
		s.stats.UnknownTypes++
		glog.Warningf("%s: %v", s.conf.Name, &UnknownTypeError{Code: m.Code})
		return
	}
	ev, err := s.dispatcher.DecodeArgs(schema, m.Payload)
	if err != nil {
		s.stats.ArgDecodeErrors++
		glog.Warningf("%s: %v", s.conf.Name, &ArgDecodeError{Code: m.Code, Err: err})
		s.parseFailed()
		return
	}
	s.parseFailures = 0
	if schema.DemandsAck {
		s.reply(m.ID)
	}
	s.stats.Dispatched++
	s.dispatcher.OnMessage(ev)
}

func (s *Session) peerDescribed() {
	if s.state.Dialog >= DialogEstablished {
		glog.V(2).Infof("%s: peer described again in %s", s.conf.Name, s.state.Dialog)
		return
	}
	if !s.selfDescribed {
		s.sendSelfDescribe()
	}
	// PendingAuth passes through: there's no authentication.
	for s.state.Dialog < DialogEstablished {
		if !s.setDialog(s.state.Dialog + 1) {
			return
		}
	}
}

func (s *Session) sendSelfDescribe() {
	s.selfDescribed = true
	if err := s.sendSession(TypeSelfDescribe, []byte(s.conf.Identity), true, false); err != nil {
		glog.Errorf("%s: queue self-describe: %v", s.conf.Name, err)
	}
}

func (s *Session) reply(id MessageID) {
	m := s.pool.Fetch()
	m.ID, m.Code = id, TypeReply
	if err := s.queueSession(m, nil, true); err != nil {
		glog.Errorf("%s: queue reply %d: %v", s.conf.Name, uint16(id), err)
	}
}

func (s *Session) sendSession(code TypeCode, payload []byte, demandsAck, front bool) error {
	m := s.pool.Fetch()
	m.ID, m.Code, m.DemandsAck = s.allocID(), code, demandsAck
	return s.queueSession(m, payload, front)
}

func (s *Session) queueSession(m *Message, payload []byte, front bool) error {
	if err := fillFrame(m, payload); err != nil {
		s.reclaim(m)
		return err
	}
	m.State = AwaitingSend
	push := s.outbound.PushBack
	if front {
		push = s.outbound.PushFront
	}
	if err := push(m); err != nil {
		s.reclaim(m)
		return err
	}
	return nil
}

func (s *Session) handleReply(id MessageID) {
	m := s.outbound.Remove(func(x *Message) bool {
		return x.DemandsAck && x.ID == id && (x.State == AwaitingReply || x.Retries > 0)
	})
	if m == nil {
		glog.V(2).Infof("%s: unexpected reply %d", s.conf.Name, uint16(id))
		return
	}
	s.ackFailures = 0
	s.stats.Acked++
	code := m.Code
	s.reclaim(m)
	if s.observer != nil && !code.IsSessionType() {
		s.observer.OnDelivered(id)
	}
	if code == TypeHangup && s.state.Dialog == DialogPendingHangup {
		s.lose(DialogHungup, ErrHungup)
	}
}

func (s *Session) pollAcks(now time.Time) {
	var failed []*Message
	for i, n := 0, s.outbound.Len(); i < n; i++ {
		m := s.outbound.At(i)
		if m.State != AwaitingReply {
			continue
		}
		switch m.ack.Poll(now) {
		case fx.ScheduleFire:
			m.Retries++
			m.State = AwaitingSend
			s.stats.Retries++
			glog.V(2).Infof("%s: retry %s (%d)", s.conf.Name, m, m.Retries)
		case fx.ScheduleExpired:
			failed = append(failed, m)
		}
	}
	for _, m := range failed {
		s.fail(m)
	}
}

// fail gives up on a message that was never acknowledged.
func (s *Session) fail(m *Message) {
	s.outbound.Remove(func(x *Message) bool { return x == m })
	err := &AckTimeoutError{ID: m.ID, Retries: m.Retries}
	glog.Warningf("%s: %v", s.conf.Name, err)
	s.stats.AckTimeouts++
	id, code := m.ID, m.Code
	s.reclaim(m)
	if s.observer != nil && !code.IsSessionType() {
		s.observer.OnDeliveryFailed(id, err)
	}
	if code == TypeHangup && s.state.Dialog == DialogPendingHangup {
		s.lose(DialogHungup, ErrHungup)
		return
	}
	s.ackFailures++
	if s.ackFailures >= s.conf.MaxAckFailures {
		s.enterDesync(InitiatorDesync, "too many unacknowledged messages")
	}
}

// flush sends queued messages. Only a synced session sends frames.
func (s *Session) flush() {
	if s.state.Sync != Synced || s.state.Dialog.Closed() {
		return
	}
	var sent []*Message
	for i, n := 0, s.outbound.Len(); i < n; i++ {
		m := s.outbound.At(i)
		if m.State != AwaitingSend {
			continue
		}
		if err := s.transport.Send(m.wire); err != nil {
			glog.Errorf("%s: send %s: %v", s.conf.Name, m, err)
			break
		}
		s.stats.FramesSent++
		if glog.V(4) {
			glog.Infof("%s: SND % x", s.conf.Name, m.wire)
		}
		if m.DemandsAck {
			m.State = AwaitingReply
			if !m.ack.Armed() {
				m.ack.Arm(s.now, s.conf.AckTimeout, s.conf.MaxRetries)
			}
			continue
		}
		m.State = AwaitingReap
		sent = append(sent, m)
	}
	for _, m := range sent {
		s.outbound.Remove(func(x *Message) bool { return x == m })
		s.reclaim(m)
	}
}

// lose ends the session. Every queued message is reclaimed and the
// Dispatcher hears about it once.
func (s *Session) lose(phase DialogPhase, reason error) {
	if !s.setDialog(phase) {
		return
	}
	glog.Warningf("%s: session lost: %v", s.conf.Name, reason)
	s.syncTimer.Disarm()
	if s.current != nil {
		s.reclaim(s.current)
		s.current = nil
	}
	s.inbound.Drain(s.reclaim)
	s.outbound.Drain(func(m *Message) {
		if s.observer != nil && m.DemandsAck && !m.Code.IsSessionType() {
			s.observer.OnDeliveryFailed(m.ID, reason)
		}
		s.reclaim(m)
	})
	s.acc = s.acc[:0]
	if !s.lost {
		s.lost = true
		s.dispatcher.OnSessionLost(reason)
	}
}
