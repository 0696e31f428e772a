package ops

import "io"

// writer is a local alias kept short because every Behavior.EmitBody in
// this package threads it through many small printing helpers.
type writer = io.Writer
