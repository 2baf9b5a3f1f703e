package main

import (
	"github.com/peermeet/peermeet/internal/cli"
	"github.com/peermeet/peermeet/internal/logging"
)

func main() {
	logging.Init()
	cli.Execute()
}
