// Package bean defines the lazy streams pods execute.
//
// A bean is a node of the logical stream graph. Stream beans produce a fresh
// pull-based Iterator per call and read nothing until Next is called. Sink
// beans consume a stream one Write at a time.
//
//	src := bean.FromSlice("numbers", []int{1, 2, 3, 4})
//	even := bean.Filter("even", src, func(v int) bool { return v%2 == 0 })
//	it := even.Iterator(ctx, 44100)
//	values, err := bean.Drain(ctx, it) // [2 4]
//
// Iterators have no HasNext. Some sources cannot be probed without
// consuming, so exhaustion is only learned from Next returning false.
package bean
