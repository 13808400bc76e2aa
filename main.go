package main

import "cda/cmd"

func main() {
	cmd.Execute()
}
