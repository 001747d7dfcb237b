package cleaner

import (
	"fmt"
	"io/fs"
	"os"
)

// specialFileError describes why mode is not a regular file. Symlinks count
// as special and are never followed.
func specialFileError(mode fs.FileMode) error {
	switch {
	case mode&fs.ModeSymlink != 0:
		return fmt.Errorf("is a symlink")
	case mode&fs.ModeCharDevice != 0:
		return fmt.Errorf("is a character device")
	case mode&fs.ModeDevice != 0:
		return fmt.Errorf("is a device file")
	case mode&fs.ModeSocket != 0:
		return fmt.Errorf("is a socket")
	case mode&fs.ModeNamedPipe != 0:
		return fmt.Errorf("is a named pipe (FIFO)")
	case mode.IsDir():
		return fmt.Errorf("is a directory")
	case !mode.IsRegular():
		return fmt.Errorf("is not a regular file")
	}
	return nil
}

// recheck stats path again right before it is acted on. Anything that is no
// longer a regular file fails as an invalid path; Lstat never follows a link
// that replaced the file after the scan.
func recheck(path string) (fs.FileInfo, *ActionError) {
	info, err := os.Lstat(path)
	if err != nil {
		return nil, CategorizeError(path, err)
	}
	if err := specialFileError(info.Mode()); err != nil {
		return nil, &ActionError{
			Path:     path,
			Reason:   ErrorInvalidPath,
			Original: fmt.Errorf("changed since scan: %w", err),
		}
	}
	return info, nil
}
