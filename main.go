package main

import "github.com/eduard256/imgable-ai/cmd"

func main() {
	cmd.Execute()
}
