package main

import "autorouter/internal/cli"

func main() {
	cli.Execute()
}
