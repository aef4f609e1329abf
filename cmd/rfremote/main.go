package main

import (
	"os"

	"github.com/lydakis/rfremote/internal/cli"
)

func main() {
	code := cli.Run(os.Args[1:])
	os.Exit(code)
}
