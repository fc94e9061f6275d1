package main

import "go.pilab.hu/focusboard/cmd/focusctl/cmd"

func main() {
	cmd.Execute()
}
