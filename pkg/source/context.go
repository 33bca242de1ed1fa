package source

// Context carries the mutable state of one kernel compilation: the
// fresh-variable generator and the bookkeeping the later passes need.
// A Context must not be shared between concurrent compilations; each
// compilation owns its own.
type Context struct {
	nextVar VarId

	// ptrParams records, in declaration order, the parameter variables
	// that hold pointers. The init block offsets exactly these.
	ptrParams []VarId

	// usesReserved is set when the program reads the qpu-id or
	// num-qpus variables, forcing their uniform loads to be emitted.
	usesReserved bool
}

// NewContext returns a fresh compilation context with the two reserved
// variables already allocated.
func NewContext() *Context {
	return &Context{nextVar: numReserved}
}

// FreshVar allocates a new source variable.
func (c *Context) FreshVar() *Var {
	v := &Var{Id: c.nextVar}
	c.nextVar++
	return v
}

// VarCount returns the number of variables allocated so far.
func (c *Context) VarCount() int { return int(c.nextVar) }

// NotePtrParam records a pointer-typed kernel parameter.
func (c *Context) NotePtrParam(id VarId) {
	c.ptrParams = append(c.ptrParams, id)
}

// PtrParams returns the pointer-typed parameter variables in order.
func (c *Context) PtrParams() []VarId { return c.ptrParams }

// NoteReservedUse marks the reserved variables as observed.
func (c *Context) NoteReservedUse() { c.usesReserved = true }

// UsesReserved reports whether the program reads a reserved variable.
func (c *Context) UsesReserved() bool { return c.usesReserved }
