// Example: Basic Completable Usage
//
// This example demonstrates the Completable chain scenario from the
// library's property tests: supply a value off the calling goroutine, chain
// two transforms, and join on the result.
//
// Run with: go run ./completable/examples/01_basic_usage/
package main

import (
	"fmt"

	"github.com/joeycumines/concurrentutil/completable"
)

func main() {
	c := completable.Supplied(func() int { return 3 })
	c = completable.ThenApply(c, func(v int) int { return v * 2 })
	c = completable.ThenApply(c, func(v int) int { return v + 1 })

	fmt.Println("result:", c.Join()) // 7
}
