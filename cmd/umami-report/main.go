package main

import "github.com/pfrederiksen/umami-report/internal/cli"

func main() {
	cli.Execute()
}
