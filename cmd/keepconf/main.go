// keepconf inspects and maintains application settings files.
package main

import "github.com/thirteen37/keepconf/internal/cmd"

func main() {
	cmd.Execute()
}
