//go:build !windows

package mystic

func loadLibrary(path string) (Library, error) {
	return nil, &LibraryLoadError{Path: path, Err: ErrUnsupportedPlatform}
}
