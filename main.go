package main

import "github.com/Tiliavir/entrylog/cmd"

func main() {
	cmd.Execute()
}
