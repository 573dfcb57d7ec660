package main

import "dispatch/cmd/dispatchd/command"

func main() {
	command.Execute()
}
