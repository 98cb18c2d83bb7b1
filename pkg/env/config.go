// Package env sets up the environment of a xeno program: configuration
// from the environment, flags and an optional YAML file, and the wiring of
// transport, session, announcer and metrics.
package env

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
	"gopkg.in/yaml.v3"

	"github.com/robotalks/xeno.go/pkg/l0/xeno"
)

// Config provides common options to set up a session.
type Config struct {
	Session xeno.Config `yaml:"session"`

	// URL specifies the transport, e.g. tcp://host:port,
	// serial:///dev/ttyUSB0 or mqtt://host:1883/prefix/name.
	URL string `yaml:"url"`

	// AnnounceURL specifies the MQTT broker the session state is announced
	// to, e.g. mqtt://host:1883/xeno/. Empty disables announcing.
	AnnounceURL string `yaml:"announce_url"`

	// MetricsAddr is the listen address of the metrics endpoint, e.g.
	// :9190. Empty disables it.
	MetricsAddr string `yaml:"metrics_addr"`

	// File is the YAML file loaded by NewEnv.
	File string `yaml:"-"`
}

var defaultConfig = Config{
	Session: xeno.DefaultConfig(),
}

func init() {
	if val := os.Getenv("XENO_NAME"); val != "" {
		defaultConfig.Session.Name = val
	}
	if val := os.Getenv("XENO_IDENTITY"); val != "" {
		defaultConfig.Session.Identity = val
	} else {
		defaultConfig.Session.Identity = MachineID()
	}
	if val := os.Getenv("XENO_URL"); val != "" {
		defaultConfig.URL = val
	}
	if val := os.Getenv("XENO_ANNOUNCE_URL"); val != "" {
		defaultConfig.AnnounceURL = val
	}
	if val := os.Getenv("XENO_METRICS_ADDR"); val != "" {
		defaultConfig.MetricsAddr = val
	}
	if val := os.Getenv("XENO_CONFIG"); val != "" {
		defaultConfig.File = val
	}
	if val := os.Getenv("XENO_SYNC_PERIOD"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			defaultConfig.Session.SyncPeriod = d
		} else {
			glog.Warningf("invalid XENO_SYNC_PERIOD %q: %v", val, err)
		}
	}
	if val := os.Getenv("XENO_ACK_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			defaultConfig.Session.AckTimeout = d
		} else {
			glog.Warningf("invalid XENO_ACK_TIMEOUT %q: %v", val, err)
		}
	}
	if val := os.Getenv("XENO_MAX_RETRIES"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			defaultConfig.Session.MaxRetries = n
		} else {
			glog.Warningf("invalid XENO_MAX_RETRIES %q: %v", val, err)
		}
	}
}

// MachineID retrieves the unique ID identifying the machine, or the host
// name when it's unavailable.
func MachineID() string {
	id, err := machineid.ProtectedID("xeno")
	if err == nil {
		return id
	}
	glog.V(1).Infof("machine id unavailable: %v", err)
	host, _ := os.Hostname()
	return host
}

// SetupFlags binds the default config to flags of fs, or the command line
// flags if fs is nil.
func SetupFlags(fs *flag.FlagSet) {
	if fs == nil {
		fs = flag.CommandLine
	}
	conf := &defaultConfig
	fs.StringVar(&conf.Session.Name, "name", conf.Session.Name, "Session name.")
	fs.StringVar(&conf.Session.Identity, "identity", conf.Session.Identity, "Identity sent to the peer.")
	fs.StringVar(&conf.URL, "url", conf.URL, "Transport URL.")
	fs.StringVar(&conf.AnnounceURL, "announce", conf.AnnounceURL, "MQTT broker URL to announce the session.")
	fs.StringVar(&conf.MetricsAddr, "metrics", conf.MetricsAddr, "Metrics listen address.")
	fs.StringVar(&conf.File, "config", conf.File, "YAML config file.")
	fs.DurationVar(&conf.Session.SyncPeriod, "sync-period", conf.Session.SyncPeriod, "Interval between sync markers.")
	fs.DurationVar(&conf.Session.AckTimeout, "ack-timeout", conf.Session.AckTimeout, "Time to wait for an acknowledgement.")
	fs.IntVar(&conf.Session.MaxRetries, "max-retries", conf.Session.MaxRetries, "Retries of an acked message.")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// LoadFile overlays the settings in a YAML file. Keys absent from the file
// keep their current values.
func (c *Config) LoadFile(fn string) error {
	data, err := os.ReadFile(fn)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config %q: %w", fn, err)
	}
	return nil
}
