package model

// Reference points at another entity in the repository.
type Reference struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name"`
}

// ExportFileInfo is one selected file as supplied by the submitter.
type ExportFileInfo struct {
	ID       string    `json:"id" validate:"required"`
	Filename string    `json:"filename" validate:"required"`
	Size     int64     `json:"size" validate:"gte=0"`
	MemberOf Reference `json:"memberOf"`
}

// Entity is the subset of a content service entity record the exporter reads.
type Entity struct {
	ID       string     `json:"id"`
	Name     string     `json:"name,omitempty"`
	MemberOf *Reference `json:"memberOf,omitempty"`
}

// MemberOfID returns the parent id or "" when the entity has no parent.
func (e *Entity) MemberOfID() string {
	if e == nil || e.MemberOf == nil {
		return ""
	}
	return e.MemberOf.ID
}

// TotalDeclaredSize sums the declared sizes of files.
func TotalDeclaredSize(files []ExportFileInfo) int64 {
	var total int64
	for _, f := range files {
		total += f.Size
	}
	return total
}
