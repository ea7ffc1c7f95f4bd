// Package entities models references to the domain objects the ownership
// ledger tracks. The ledger itself never knows entity shapes; resolution
// goes through a capability-lookup table populated at startup.
package entities

import "strings"

// Ref identifies a domain entity by type identifier and instance id.
type Ref struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// IsZero reports whether the ref is missing either identifying field.
func (r Ref) IsZero() bool {
	return r.ID == 0 || r.Type == ""
}

// ShortName derives a display name from a type identifier when no alias is
// registered: the last segment of a dotted, slashed or backslashed path.
func ShortName(typeIdentifier string) string {
	name := typeIdentifier
	for _, sep := range []string{"\\", "/", "."} {
		if idx := strings.LastIndex(name, sep); idx >= 0 {
			name = name[idx+len(sep):]
		}
	}
	return name
}
