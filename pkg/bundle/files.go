package bundle

import (
	"encoding/xml"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/lunaros/pakit/pkg/paths"
)

// FileEntry is one declared content item from files.xml. Order
// in the document is the order entries are verified, planned,
// and applied in.
type FileEntry struct {
	Path string `xml:"Path"`
	Type string `xml:"Type"`
	Size int64  `xml:"Size"`
	UID  int    `xml:"Uid"`
	GID  int    `xml:"Gid"`
	Mode string `xml:"Mode"`
	Hash string `xml:"Hash"`
}

// IsDir reports whether the entry declares a directory rather
// than file content. Directory entries carry no hash.
func (e FileEntry) IsDir() bool {
	return e.Type == "directory"
}

// FileMode parses the octal permission string from the
// manifest. An empty mode falls back to 0644 for files and 0755
// for directories, matching what bundle builders emit for
// entries they never chmod.
func (e FileEntry) FileMode() (fs.FileMode, error) {
	if e.Mode == "" {
		if e.IsDir() {
			return 0o755, nil
		}
		return 0o644, nil
	}
	n, err := strconv.ParseUint(strings.TrimPrefix(e.Mode, "0o"), 8, 32)
	if err != nil {
		return 0, fmt.Errorf("bad mode %q: %w", e.Mode, err)
	}
	return fs.FileMode(n) & fs.ModePerm, nil
}

type filesDoc struct {
	XMLName xml.Name    `xml:"Files"`
	Entries []FileEntry `xml:"File"`
}

// ParseFiles decodes a files.xml document into its ordered
// entry list. Path is required for every entry, Hash for every
// non-directory entry, and paths must stay relative.
func ParseFiles(data []byte) ([]FileEntry, error) {
	var doc filesDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{
			Doc: "files.xml", Field: "document", Err: err,
		}
	}

	for i, e := range doc.Entries {
		if e.Path == "" {
			return nil, &ParseError{
				Doc:   "files.xml",
				Field: fmt.Sprintf("File[%d]/Path", i),
			}
		}
		if err := paths.ValidateRelPath(e.Path); err != nil {
			return nil, &ParseError{
				Doc:   "files.xml",
				Field: fmt.Sprintf("File[%d]/Path", i),
				Err:   err,
			}
		}
		if !e.IsDir() && e.Hash == "" {
			return nil, &ParseError{
				Doc:   "files.xml",
				Field: fmt.Sprintf("File[%d]/Hash", i),
			}
		}
		doc.Entries[i].Path = paths.CleanRelPath(e.Path)
	}
	return doc.Entries, nil
}
