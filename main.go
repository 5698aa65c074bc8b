package main

import "github.com/kevinaaaquil/library/cli"

func main() {
	cli.Execute()
}
