package main

import "github.com/jeffersonwarrior/eviscape/internal/cli"

func main() {
	cli.Main()
}
