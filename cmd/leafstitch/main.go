package main

import "github.com/MeKo-Tech/leafstitch/cmd/leafstitch/cmd"

func main() {
	cmd.Execute()
}
