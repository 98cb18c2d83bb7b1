package env

import (
	"context"
	"errors"
	"flag"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fx "github.com/robotalks/xeno.go/pkg/framework"
	"github.com/robotalks/xeno.go/pkg/l0/xeno"
	"github.com/robotalks/xeno.go/pkg/l1/msgs"
)

func TestLoadFile(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "xeno.yaml")
	require.NoError(t, os.WriteFile(fn, []byte(`
url: tcp://127.0.0.1:7000
session:
  name: bench
  sync_period: 50ms
  max_retries: 5
`), 0644))
	conf := NewConfig()
	conf.MetricsAddr = ":1234"
	require.NoError(t, conf.LoadFile(fn))
	assert.Equal(t, "tcp://127.0.0.1:7000", conf.URL)
	assert.Equal(t, "bench", conf.Session.Name)
	assert.Equal(t, 50*time.Millisecond, conf.Session.SyncPeriod)
	assert.Equal(t, 5, conf.Session.MaxRetries)
	assert.Equal(t, xeno.DefaultAckTimeout, conf.Session.AckTimeout)
	assert.Equal(t, ":1234", conf.MetricsAddr)

	require.NoError(t, os.WriteFile(fn, []byte("session: [1"), 0644))
	require.Error(t, conf.LoadFile(fn))
	require.Error(t, conf.LoadFile(filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestNewConfigCopies(t *testing.T) {
	conf := NewConfig()
	conf.URL = "tcp://elsewhere:1"
	assert.NotEqual(t, conf.URL, Default().URL)
	assert.NotEmpty(t, Default().Session.Identity)
}

func TestSetupFlags(t *testing.T) {
	saved := defaultConfig
	defer func() { defaultConfig = saved }()

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	SetupFlags(fs)
	require.NoError(t, fs.Parse([]string{"-url", "serial:///dev/ttyS0", "-sync-period", "10ms", "-name", "rover"}))
	conf := NewConfig()
	assert.Equal(t, "serial:///dev/ttyS0", conf.URL)
	assert.Equal(t, 10*time.Millisecond, conf.Session.SyncPeriod)
	assert.Equal(t, "rover", conf.Session.Name)
}

func TestNewEnvErrors(t *testing.T) {
	conf := NewConfig()
	conf.URL, conf.File = "", ""
	_, err := conf.NewEnv(context.Background(), nil)
	require.Error(t, err)

	conf.URL = "gopher://nowhere"
	_, err = conf.NewEnv(context.Background(), nil)
	require.Error(t, err)
}

type recorder struct {
	lock sync.Mutex
	msgs []fx.Message
}

func (r *recorder) HandleMessage(msg fx.Message) {
	r.lock.Lock()
	r.msgs = append(r.msgs, msg)
	r.lock.Unlock()
}

func (r *recorder) count(fn func(fx.Message) bool) int {
	r.lock.Lock()
	defer r.lock.Unlock()
	n := 0
	for _, msg := range r.msgs {
		if fn(msg) {
			n++
		}
	}
	return n
}

func TestEnvsOverPipe(t *testing.T) {
	c1, c2 := net.Pipe()
	r1, r2 := &recorder{}, &recorder{}
	conf1, conf2 := NewConfig(), NewConfig()
	conf1.Session.Name, conf1.Session.Identity = "host", "host-id"
	conf2.Session.Name, conf2.Session.Identity = "device", "device-id"
	e1 := NewEnvWith(conf1, c1, r1)
	e2 := NewEnvWith(conf2, c2, r2)
	require.NoError(t, e2.ServeMetrics("127.0.0.1:0"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var wg sync.WaitGroup
	for _, e := range []*Env{e1, e2} {
		loop := fx.NewLoop().Add(e)
		wg.Add(1)
		go func() {
			defer wg.Done()
			loop.Run(ctx)
		}()
	}

	established := func(msg fx.Message) bool { _, ok := msg.(*msgs.Established); return ok }
	require.Eventually(t, func() bool {
		return r1.count(established) == 1 && r2.count(established) == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, "device-id", e1.Link.PeerIdentity())

	_, err := e1.Link.Submit(msgs.NewLog("hello"), false)
	require.NoError(t, err)
	isLog := func(msg fx.Message) bool {
		l, ok := msg.(*msgs.Log)
		return ok && l.Value == "hello"
	}
	require.Eventually(t, func() bool { return r2.count(isLog) == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, e2.Dispatcher.Counts()["log"])

	body := scrape(t, "http://"+e2.Metrics.Addr().String()+"/metrics")
	assert.Contains(t, body, `xeno_events_total{link="device",type="log"} 1`)
	assert.Contains(t, body, `xeno_dialog_phase{link="device",phase="Established"} 1`)
	assert.Regexp(t, `xeno_frames_decoded_total\{link="device"\} [1-9]`, body)

	cancel()
	wg.Wait()
	require.NoError(t, e1.Close())
	require.NoError(t, e2.Close())
}

func scrape(t *testing.T, url string) string {
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

func TestNewEnvServesMetrics(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "capture.bin")
	require.NoError(t, os.WriteFile(fn, nil, 0644))
	conf := NewConfig()
	conf.File, conf.AnnounceURL = "", ""
	conf.URL = "file://" + fn

	conf.MetricsAddr = "127.0.0.1:-1"
	_, err := conf.NewEnv(context.Background(), nil)
	require.Error(t, err)

	conf.MetricsAddr = "127.0.0.1:0"
	e, err := conf.NewEnv(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, e.Metrics)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Metrics.Run(ctx) }()
	body := scrape(t, "http://"+e.Metrics.Addr().String()+"/metrics")
	assert.Contains(t, body, "xeno_frames_decoded_total")
	cancel()
	require.NoError(t, <-done)
	require.NoError(t, e.Close())
}

type failCloser struct{ err error }

func (c failCloser) Close() error { return c.err }

func TestCloseAggregates(t *testing.T) {
	e1, e2 := errors.New("one"), errors.New("two")
	env := &Env{}
	env.closers = append(env.closers, failCloser{e1}, failCloser{nil}, failCloser{e2})
	err := env.Close()
	require.Error(t, err)
	assert.True(t, errors.Is(err, e1))
	assert.True(t, errors.Is(err, e2))
	assert.NoError(t, env.Close())
}
