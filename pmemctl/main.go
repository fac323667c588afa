// Command pmemctl builds and inspects physical page permission tables.
package main

import (
	"github.com/sarchlab/pmem/pmemctl/cmd"
	"github.com/tebeka/atexit"
)

func main() {
	atexit.Exit(cmd.Execute())
}
