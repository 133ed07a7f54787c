package core

// GlobalFileName identifies the pseudo-file that repository-wide checks
// attach their issues to. It is not a real path.
const GlobalFileName = "<global>"

// FileData is one analysis unit: a single file, or the global sentinel
// representing whole-repository checks.
type FileData struct {
	// Name is the base file name, e.g. "index.js".
	Name string `json:"name"`
	// Path is the path relative to the repository root.
	Path string `json:"path"`
	// Content is the full file content. Empty for the global sentinel.
	Content string `json:"-"`
}

// GlobalFileData returns the sentinel unit for repository-wide checks.
// It always sorts after real files in per-file iteration.
func GlobalFileData() FileData {
	return FileData{Name: GlobalFileName, Path: GlobalFileName}
}

// IsGlobal reports whether this unit is the repository-wide sentinel.
func (f FileData) IsGlobal() bool {
	return f.Name == GlobalFileName
}
