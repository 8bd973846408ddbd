// y12d is the y12 build orchestration server.
package main

import (
	"github.com/bitswalk/y12/src/y12d/core"
)

func main() {
	core.Execute()
}
