package main

import "github.com/iksnae/llmcapture/cmd"

func main() {
	cmd.Execute()
}
