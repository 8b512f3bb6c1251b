package main

import (
	"github.com/cruz-jay/beatbot/cmd"
)

func main() {
	cmd.Execute()
}
