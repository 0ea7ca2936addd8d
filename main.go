package main

import "github.com/lukman83/serpstat-mcp/cmd"

func main() {
	cmd.Execute()
}
