package main

import (
	"github.com/robotalks/xeno.go/pkg/cli/sh"
	"github.com/robotalks/xeno.go/pkg/env"

	_ "github.com/robotalks/xeno.go/pkg/cli/cmds/events"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupFlags(nil)
}

func main() {
	sh.Main()
}
