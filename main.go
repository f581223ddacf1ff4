package main

import "label-matcher/cmd"

func main() {
	cmd.Execute()
}
