package main

import (
	"os"

	"minimail/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
