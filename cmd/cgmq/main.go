package main

import "devicecgm/cmd/cgmq/command"

func main() {
	command.Execute()
}
