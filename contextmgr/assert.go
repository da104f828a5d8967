package contextmgr

import "github.com/amplifier-run/amplifier/runtime"

// Simple must satisfy runtime.ContextManager so a session can mount it
// directly without either package importing the other's concrete types.
var _ runtime.ContextManager = (*Simple)(nil)
