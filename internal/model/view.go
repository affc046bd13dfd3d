package model

// ResolvedView joins a pet with its owner's contact fields for the public
// lookup page. It is built per request and never persisted.
type ResolvedView struct {
	Pet   Pet
	Owner Contact
}

// HasPhone reports whether the owner can be reached by phone.
func (v *ResolvedView) HasPhone() bool {
	return v != nil && v.Owner.Phone != ""
}
