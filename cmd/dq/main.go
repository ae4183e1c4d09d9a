package main

import (
	"os"

	"github.com/David-Botos/data-quality/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
