package main

import "github.com/km-arc/go-modular/cmd"

func main() {
	cmd.Execute()
}
