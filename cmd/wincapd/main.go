package main

import "github.com/bryanchriswhite/wincap/cmd/wincapd/commands"

func main() {
	commands.Execute()
}
