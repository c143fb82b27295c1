package main

import (
	_ "time/tzdata"

	"github.com/livedash/livedash/cli"
)

func main() {
	var rootCmd cli.RootCmd
	rootCmd.Main()
}
