// Command recipectl is a terminal client for Recipebox.
package main

import "recipebox/cmd/recipectl/commands"

func main() {
	commands.Execute()
}
