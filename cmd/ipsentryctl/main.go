package main

import "ipsentry/internal/cli"

func main() {
	cli.Execute()
}
