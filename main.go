package main

import "github.com/NeapolitanIcecream/openbridge/cmd"

func main() {
	cmd.Execute()
}
