/*
Package sandbox hosts guest JavaScript in isolated goja runtimes.

Each Context owns one goja runtime driven by a goja_nodejs event loop, so
guest code, timers and promise jobs all run on a single goroutine. Host
goroutines never touch the runtime directly; they enqueue work with Run,
Go or Dispatch.

# Security

The runtime starts with require, process, module and exports removed.
Script evaluation and every synchronous guest job are bounded: a guest
that spins is interrupted, and the context stays usable.

# Pending calls

Dispatch invokes plugin[method] through a dispatcher installed before
any guest code runs. The dispatcher receives two host callables bound to
a success token and an error token. Both tokens address one entry in the
PendingTable; the first fire removes both, later fires are ignored.

# Pool

Pool keeps warm contexts for package loads. Contexts are not reused after
a package has run in them.
*/
package sandbox
