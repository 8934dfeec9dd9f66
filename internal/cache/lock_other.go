//go:build !unix

package cache

import "os"

// Other platforms rely on the in-process mutex only.
func lockFile(*os.File) error { return nil }

func unlockFile(*os.File) error { return nil }
