// cmd/prokfmt/main.go
package main

import (
	"prokfmt/internal/appshell"
	"prokfmt/internal/cli"
)

func main() {
	appshell.Main(cli.RunContext)
}
