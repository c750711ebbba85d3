package main

import "github.com/vietddude/feedrelay/internal/cli"

func main() {
	cli.Execute()
}
