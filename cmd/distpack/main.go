// Command distpack assembles a release distribution archive.
package main

import "github.com/oshokin/distpack/cmd/distpack/cmd"

func main() {
	cmd.Execute()
}
