package questionpool

// Data is the descriptive part of a pool. Both fields are optional.
type Data struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// NewData builds Data from plain strings, mapping "" to nil.
func NewData(name, description string) Data {
	return Data{Name: optional(name), Description: optional(description)}
}

func (d Data) GetName() string        { return deref(d.Name) }
func (d Data) GetDescription() string { return deref(d.Description) }

// Equal compares by value.
func (d Data) Equal(o Data) bool {
	return equalOptional(d.Name, o.Name) && equalOptional(d.Description, o.Description)
}

func (d Data) clone() Data {
	return Data{Name: cloneOptional(d.Name), Description: cloneOptional(d.Description)}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func cloneOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func equalOptional(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
