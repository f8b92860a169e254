// Package main provides the Spindle CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spindle-ml/spindle/dispatch"
)

const version = "v0.0.1-dev"

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version":
			fmt.Printf("Spindle %s\n", version)
			return
		case "ops":
			listOps()
			return
		}
	}

	fmt.Println("Spindle - Tensor Dispatch Substrate for Go")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version    Show version")
	fmt.Println("  ops        List builtin operator schemas")
}

func listOps() {
	ops := dispatch.DefaultOps()
	for _, name := range ops.Ops() {
		sch, _ := ops.Lookup(name)
		fmt.Println(sch)
	}
}
