package main

import "github.com/MeKo-Tech/cldfoffline/internal/cmd"

func main() {
	cmd.Execute()
}
