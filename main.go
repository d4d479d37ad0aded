package main

import "github.com/ovaphlow/pitchfork/service-identity/internal/cli"

func main() {
	cli.Execute()
}
