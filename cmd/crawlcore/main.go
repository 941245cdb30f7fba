package main

import "github.com/rohmanhakim/crawlcore/internal/cli"

func main() {
	cli.Execute()
}
