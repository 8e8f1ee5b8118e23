package main

import "github.com/jpanzo/debt-tracker/cmd"

func main() {
	cmd.Execute()
}
