package main

import "github.com/oshokin/timesync/cmd/timesync/cmd"

func main() {
	cmd.Execute()
}
