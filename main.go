package main

import "oas-testgen/cmd"

func main() {
	cmd.Execute()
}
