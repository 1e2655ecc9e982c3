// Package backends links every archive backend adapter into the binary.
package backends

import (
	_ "github.com/newthinker/lasr-archive/archive/localfs"
	_ "github.com/newthinker/lasr-archive/archive/memory"
	_ "github.com/newthinker/lasr-archive/archive/mongodb"
	_ "github.com/newthinker/lasr-archive/archive/s3store"
	_ "github.com/newthinker/lasr-archive/archive/sqldb"
)
