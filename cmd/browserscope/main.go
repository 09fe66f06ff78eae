// Command browserscope runs YAML browser flows.
package main

import "github.com/devicelab-dev/browserscope/pkg/cli"

func main() {
	cli.Execute()
}
