package main

import "github.com/KP-101219/Quickroll-V2/cmd"

func main() {
	cmd.Execute()
}
