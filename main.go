package main

import (
	cmd "github.com/veilpii/veil/cmd/veil"
)

func main() {
	cmd.Execute()
}
