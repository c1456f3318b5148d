package main

import "github.com/abimbolaoige/kfm-counsel-chat/internal/cli"

func main() {
	cli.Execute()
}
