package main

import "node_starter/cmd"

func main() {
	cmd.Execute()
}
