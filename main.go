package main

import "github.com/samsaffron/aleph/cmd"

func main() {
	cmd.Execute()
}
