package msgs

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	fx "github.com/robotalks/xeno.go/pkg/framework"
	"github.com/robotalks/xeno.go/pkg/l0/xeno"
)

type recorder struct {
	msgs []fx.Message
}

func (r *recorder) HandleMessage(msg fx.Message) {
	r.msgs = append(r.msgs, msg)
}

type wire struct {
	out []byte
}

func (w *wire) Send(p []byte) error {
	w.out = append(w.out, p...)
	return nil
}

func (w *wire) take() []byte {
	p := w.out
	w.out = nil
	return p
}

func TestDispatcherOverSessions(t *testing.T) {
	ra, rb := &recorder{}, &recorder{}
	da := NewDispatcher(NewDefaultRegistry(), ra)
	db := NewDispatcher(NewDefaultRegistry(), rb)
	wa, wb := &wire{}, &wire{}
	a := xeno.NewSession(xeno.Config{Identity: "a"}, da, wa)
	b := xeno.NewSession(xeno.Config{Identity: "b"}, db, wb)

	now := time.Unix(1600000000, 0)
	a.Connected(now)
	b.Connected(now)
	for i := 0; i < 50; i++ {
		now = now.Add(10 * time.Millisecond)
		a.Tick(now)
		b.Tick(now)
		for j := 0; j < 10; j++ {
			if p := wa.take(); len(p) > 0 {
				b.OnBytesReceived(p)
			}
			if p := wb.take(); len(p) > 0 {
				a.OnBytesReceived(p)
			}
		}
	}
	require.Equal(t, xeno.DialogEstablished, a.State().Dialog)
	require.Equal(t, []fx.Message{&Established{}}, ra.msgs)

	id, err := a.Submit(NewEcho([]byte("x")), true)
	require.NoError(t, err)
	_, err = a.Submit(NewReading(map[string]float64{"v": 1}), false)
	require.NoError(t, err)
	b.OnBytesReceived(wa.take())
	// the echo is answered by the acknowledgement alone.
	reply := wb.take()
	require.Len(t, reply, xeno.HeaderLen)
	a.OnBytesReceived(reply)

	require.Len(t, rb.msgs, 3)
	require.Equal(t, []byte("x"), rb.msgs[1].(*Echo).Value)
	require.Equal(t, map[string]float64{"v": 1}, rb.msgs[2].(*Reading).Numbers())
	require.Equal(t, &Delivered{ID: id}, ra.msgs[1])
	require.Len(t, ra.msgs, 2)
	require.Equal(t, map[string]int{"echo": 1, "reading": 1}, db.Counts())

	a.LinkLost()
	require.Equal(t, &Lost{Reason: xeno.ErrLinkLost}, ra.msgs[len(ra.msgs)-1])
}

func TestDispatcherDecodeErrors(t *testing.T) {
	d := NewDispatcher(NewDefaultRegistry(), nil)
	_, err := d.LookupTypeDef(0x7777)
	require.True(t, errors.Is(err, xeno.ErrNotFound))

	s, err := d.LookupTypeDef(LogType)
	require.NoError(t, err)
	_, err = d.DecodeArgs(s, []byte{0x0a, 0x05, 'a'})
	require.Error(t, err)

	_, err = d.EncodeArgs(notEvent{})
	require.Equal(t, ErrNotEvent, err)
}

type notEvent struct{}

func (notEvent) TypeCode() xeno.TypeCode { return LogType }
