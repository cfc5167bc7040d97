package main

import "dentgo-go/internal/cli"

func main() {
	cli.Execute()
}
