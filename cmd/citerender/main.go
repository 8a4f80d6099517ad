package main

import (
	"os"

	"github.com/dgallion1/citerender/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
