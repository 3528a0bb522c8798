package main

import "github.com/kozaktomas/missing-persons/cmd"

func main() {
	cmd.Execute()
}
