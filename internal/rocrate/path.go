package rocrate

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

const repositoryPrefix = "/repository/"

var reservedReplacer = strings.NewReplacer(
	"<", "_", ">", "_", ":", "_", `"`, "_", "|", "_", "?", "_", "*", "_",
)

var filenameReplacer = strings.NewReplacer("/", "_", `\`, "_")

// ExtractPathFromID maps an entity identifier to its directory inside the archive.
//
//	https://host.example/repository/COLL/001 -> host.example/COLL/001
//
// Identifiers without a scheme and host are kept verbatim with the characters
// <>:"|?* replaced by underscores.
func ExtractPathFromID(id string) string {
	u, err := url.Parse(id)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return reservedReplacer.Replace(id)
	}
	p := u.Path
	if strings.HasPrefix(p, repositoryPrefix) {
		p = p[len(repositoryPrefix):]
	} else {
		p = strings.TrimPrefix(p, "/")
	}
	if p == "" {
		return u.Host
	}
	return u.Host + "/" + p
}

// MetadataPath is the archive path of the provenance document of an entity.
func MetadataPath(entityID string) string {
	return ExtractPathFromID(entityID) + "/" + MetadataFileName
}

// FilePaths hands out archive paths for the files of one item. Path separators
// in a filename become underscores so every file lands directly in the item
// directory. A name that is already taken, including the metadata document, gets
// a " (n)" suffix before its extension.
type FilePaths struct {
	dir  string
	used map[string]struct{}
}

func NewFilePaths(itemID string) *FilePaths {
	return &FilePaths{
		dir:  ExtractPathFromID(itemID),
		used: map[string]struct{}{MetadataFileName: {}},
	}
}

// Next returns the path for filename and reserves it.
func (p *FilePaths) Next(filename string) string {
	name := filenameReplacer.Replace(filename)
	if _, taken := p.used[name]; taken {
		ext := path.Ext(name)
		base := strings.TrimSuffix(name, ext)
		for i := 2; ; i++ {
			candidate := fmt.Sprintf("%s (%d)%s", base, i, ext)
			if _, taken := p.used[candidate]; !taken {
				name = candidate
				break
			}
		}
	}
	p.used[name] = struct{}{}
	return p.dir + "/" + name
}
