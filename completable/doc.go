// Example of a three-stage synchronous chain, matching the "Completable
// chain" scenario: start from a supplied value, apply two transforms, join.
//
//	c := completable.Supplied(func() int { return 3 })
//	c = completable.ThenApply(c, func(v int) int { return v * 2 })
//	c = completable.ThenApply(c, func(v int) int { return v + 1 })
//	result := c.Join() // 7
package completable
