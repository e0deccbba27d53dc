// Command dlepctl is the control-plane client for dlepd.
package main

import "github.com/oonf-go/godlep/cmd/dlepctl/commands"

func main() {
	commands.Execute()
}
