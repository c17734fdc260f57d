package main

import (
	"github.com/nikelwish/p2p-service/cmd"
	"github.com/nikelwish/p2p-service/internal/logging"
)

func main() {
	logging.Init()
	cmd.Execute()
}
