package common

import (
	"fmt"
	"os"
	"runtime/debug"
)

func PanicHandler() {
	if r := recover(); r != nil {
		fmt.Fprintf(os.Stderr, "Panic caught in blockjoin: %v\n", r)
		debug.PrintStack()
		os.Exit(1)
	}
}
