package main

import "extgov/cli"

func main() {
	cli.Run()
}
