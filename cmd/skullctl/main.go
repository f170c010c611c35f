package main

import "github.com/baedrik/skulls2/internal/cli"

func main() {
	cli.Execute()
}
