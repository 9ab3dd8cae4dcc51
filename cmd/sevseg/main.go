package main

import "github.com/MeKo-Tech/sevseg/cmd/sevseg/cmd"

func main() {
	cmd.Execute()
}
