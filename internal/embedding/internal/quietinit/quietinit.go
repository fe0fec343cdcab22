// Package quietinit discards standard log output until the embedding package
// finishes initializing.
//
// github.com/sugarme/tokenizer prints its cache directory from init. Packages
// with no dependency between them initialize in import path order, and this
// path sorts before github.com/sugarme, so this init always runs first.
package quietinit

import (
	"io"
	"log"
)

func init() {
	log.SetOutput(io.Discard)
}
