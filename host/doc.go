// Package host keeps the pods of one process and routes calls to them by key.
//
//	h := host.New("worker", "1.0.0")
//	_ = h.Register(p)
//	_ = h.StartAll(ctx)
//	defer h.CloseAll()
//
//	res, err := h.Call(ctx, p.Key(), pod.NewCall(pod.MethodInputs))
//
// A Host satisfies proxy.Caller, so streams in the same process can read
// its pods without a transport.
package host
