package main

import "github.com/iksnae/hdt-console/cmd"

func main() {
	cmd.Execute()
}
