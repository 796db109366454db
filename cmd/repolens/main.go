package main

import "github.com/draylor/repolens/cmd/repolens/cmd"

func main() {
	cmd.Execute()
}
