package main

import "risk-vetting-engine/cmd"

func main() {
	cmd.Execute()
}
