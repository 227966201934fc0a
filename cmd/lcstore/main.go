package main

import (
	"os"

	"github.com/emily-flambe/list-cutter-sub018/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
