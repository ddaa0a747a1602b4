package main

import "github.com/Tiliavir/tally/cmd"

func main() {
	cmd.Execute()
}
