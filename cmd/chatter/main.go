package main

import "github.com/nfrund/chatter/cmd/chatter/cmd"

func main() {
	cmd.Execute()
}
