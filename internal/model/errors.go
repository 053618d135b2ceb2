package model

import "github.com/rotisserie/eris"

// ErrCancelled reports that the run's cancellation token fired. It is not a
// failure of any source.
var ErrCancelled = eris.New("run cancelled")
