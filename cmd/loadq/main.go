package main

import "loadq/cmd"

func main() {
	cmd.Execute()
}
