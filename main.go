package main

import "tessera/cmd"

func main() {
	cmd.Execute()
}
