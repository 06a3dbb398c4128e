package webassets

import (
	"embed"
	"fmt"
	"io/fs"
)

//go:embed player
var embedded embed.FS

// PlayerFS returns the embedded player page assets (index.html at the
// root of the returned FS).
func PlayerFS() fs.FS {
	sub, err := fs.Sub(embedded, "player")
	if err != nil {
		panic(fmt.Errorf("webassets: player subfs: %w", err))
	}
	return sub
}
