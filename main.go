package main

import "github.com/driftcove/driftcove/cmd"

func main() {
	cmd.Execute()
}
