package main

import "github.com/deploymenttheory/go-avb/cmd"

func main() {
	cmd.Execute()
}
