package domain

// ListName identifies one named array on the shared list configuration.
type ListName string

const (
	ListCategories     ListName = "categories"
	ListDetectionAreas ListName = "detectionAreas"
	ListOriginAreas    ListName = "originAreas"
	ListSalespeople    ListName = "salespeople"
	ListStatuses       ListName = "statuses"
	ListRoles          ListName = "roles"
)

// ListNames lists every managed vocabulary.
var ListNames = []ListName{
	ListCategories, ListDetectionAreas, ListOriginAreas,
	ListSalespeople, ListStatuses, ListRoles,
}

// Valid reports whether n names a managed list.
func (n ListName) Valid() bool {
	for _, known := range ListNames {
		if n == known {
			return true
		}
	}
	return false
}

// ListConfiguration holds the vocabularies that populate every dropdown.
// Editing a list does not touch occurrences that already carry a value.
type ListConfiguration struct {
	Categories     []string `json:"categories"`
	DetectionAreas []string `json:"detectionAreas"`
	OriginAreas    []string `json:"originAreas"`
	Salespeople    []string `json:"salespeople"`
	Statuses       []string `json:"statuses"`
	Roles          []string `json:"roles"`
}

// ListsFromDocument decodes the shared configuration document.
func ListsFromDocument(doc Document) ListConfiguration {
	f := doc.Fields
	return ListConfiguration{
		Categories:     stringsField(f, string(ListCategories)),
		DetectionAreas: stringsField(f, string(ListDetectionAreas)),
		OriginAreas:    stringsField(f, string(ListOriginAreas)),
		Salespeople:    stringsField(f, string(ListSalespeople)),
		Statuses:       stringsField(f, string(ListStatuses)),
		Roles:          stringsField(f, string(ListRoles)),
	}
}

// Get returns a copy of the named list.
func (c ListConfiguration) Get(name ListName) []string {
	var src []string
	switch name {
	case ListCategories:
		src = c.Categories
	case ListDetectionAreas:
		src = c.DetectionAreas
	case ListOriginAreas:
		src = c.OriginAreas
	case ListSalespeople:
		src = c.Salespeople
	case ListStatuses:
		src = c.Statuses
	case ListRoles:
		src = c.Roles
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// Contains reports whether value is present in the named list.
func (c ListConfiguration) Contains(name ListName, value string) bool {
	for _, v := range c.Get(name) {
		if v == value {
			return true
		}
	}
	return false
}
