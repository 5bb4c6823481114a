package main

import "time"

// ticksPerSecond and monotonicTicks feed the next-hop table's age
// computation (nexthop.NewTable); nanoseconds since the Unix epoch
// stand in for the original's TSC cycle counter.
const ticksPerSecond = int64(time.Second)

func monotonicTicks() int64 {
	return time.Now().UnixNano()
}
