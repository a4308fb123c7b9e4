package main

import "github.com/chrisdamba/bhtraffic/cmd"

func main() {
	cmd.Execute()
}
