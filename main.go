package main

import "github.com/viktsys/tdingest/cmd"

func main() {
	cmd.Execute()
}
