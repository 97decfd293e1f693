package main

import "cloudops/internal/cli"

func main() {
	cli.Execute()
}
