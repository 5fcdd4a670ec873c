// cmd/matchctl/main.go
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(connectService).Execute(); err != nil {
		os.Exit(1)
	}
}
