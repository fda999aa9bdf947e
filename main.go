package main

import "github.com/chrisdamba/routesim/cmd"

func main() {
	cmd.Execute()
}
