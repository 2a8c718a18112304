package main

import (
	"os"

	"github.com/jd3nn1s/ecojuicer/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
