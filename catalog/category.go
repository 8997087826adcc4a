package catalog

import "strings"

// GeneralCategory is assigned to names with neither a '.' nor a '_'
const GeneralCategory = "general"

// Category derives a tool's category from its name: the part before the
// first '.', otherwise before the first '_', otherwise GeneralCategory.
func Category(name string) string {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	if i := strings.IndexByte(name, '_'); i >= 0 {
		return name[:i]
	}
	return GeneralCategory
}

// InCategory reports whether name starts with category followed by '.' or
// '_', ignoring case.
func InCategory(name, category string) bool {
	name = strings.ToLower(name)
	category = strings.ToLower(category)
	return strings.HasPrefix(name, category+".") || strings.HasPrefix(name, category+"_")
}
