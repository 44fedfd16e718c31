package main

import "storrent/cmd"

func main() {
	cmd.Execute()
}
