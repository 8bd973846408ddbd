// y12ctl is the command-line client for the y12 build API.
package main

import "github.com/bitswalk/y12/src/y12ctl/internal/cmd"

func main() {
	cmd.Execute()
}
