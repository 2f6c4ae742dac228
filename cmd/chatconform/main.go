package main

import "github.com/Quidge/chatconform/cmd"

func main() {
	cmd.Execute()
}
