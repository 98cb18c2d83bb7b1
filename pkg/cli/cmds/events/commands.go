// Package events adds shell commands sending the built-in events.
package events

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/xeno.go/pkg/cli/sh"
	"github.com/robotalks/xeno.go/pkg/l1/msgs"
)

var (
	// PingCmd sends Ping and waits for the acknowledgement.
	PingCmd = ishell.Cmd{
		Name:    "ping",
		Aliases: []string{"p"},
		Help:    "",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			start := time.Now()
			if sh.Send(c, &msgs.Ping{}) == nil {
				c.Printf("%v\n", time.Since(start))
			}
		}),
	}

	// LogCmd sends a line of text.
	LogCmd = ishell.Cmd{
		Name: "log",
		Help: "TEXT...",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			sh.Send(c, msgs.NewLog(strings.Join(c.Args, " ")))
		}),
	}

	// EchoCmd sends Echo.
	EchoCmd = ishell.Cmd{
		Name: "echo",
		Help: "TEXT...",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			sh.Send(c, msgs.NewEcho([]byte(strings.Join(c.Args, " "))))
		}),
	}

	// ReadingCmd sends named values.
	ReadingCmd = ishell.Cmd{
		Name:    "reading",
		Aliases: []string{"r"},
		Help:    "NAME=VALUE...",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			values, err := ParseValues(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			sh.Send(c, msgs.NewReading(values))
		}),
	}

	// ClockCmd sends the local clock.
	ClockCmd = ishell.Cmd{
		Name: "clock",
		Help: "",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			sh.Send(c, msgs.NewClock(time.Now()))
		}),
	}
)

// ParseValues parses NAME=VALUE arguments.
func ParseValues(args []string) (map[string]float64, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("NAME=VALUE required")
	}
	values := make(map[string]float64, len(args))
	for _, arg := range args {
		pos := strings.Index(arg, "=")
		if pos <= 0 {
			return nil, fmt.Errorf("invalid argument %q, NAME=VALUE expected", arg)
		}
		val, err := strconv.ParseFloat(arg[pos+1:], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value of %s: %v", arg[:pos], err)
		}
		values[arg[:pos]] = val
	}
	return values, nil
}

func init() {
	sh.AddCmds(
		&PingCmd,
		&LogCmd,
		&EchoCmd,
		&ReadingCmd,
		&ClockCmd,
	)
}
