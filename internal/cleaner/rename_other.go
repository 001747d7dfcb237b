//go:build !linux

package cleaner

func renameNoReplace(oldpath, newpath string) error {
	return renameChecked(oldpath, newpath)
}
