package main

import "github.com/salasarservices/pulse/cmd"

func main() {
	cmd.Execute()
}
