package ransim

import (
	"fmt"
)

// DebugPrint gates the progress lines the simulator writes to stdout.
// Off by default; the command line turns it on with -v.
var DebugPrint bool = false

// debugf writes one progress line to stdout when DebugPrint is set
func debugf(format string, args ...any) {
	if !DebugPrint {
		return
	}
	fmt.Printf(format+"\n", args...)
}
