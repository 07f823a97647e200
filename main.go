package main

import "github.com/kozaktomas/roll-call/cmd"

func main() {
	cmd.Execute()
}
