package model

import "strings"

// DrugPlaceholder is the "nothing selected" entry of the drug picker.
const DrugPlaceholder = "--- Select a Drug ---"

// MedicationListBuilder collects a medication list while a profile is being
// created or edited.
type MedicationListBuilder struct {
	items []string
}

func NewMedicationListBuilder(items ...string) *MedicationListBuilder {
	b := &MedicationListBuilder{}
	for _, item := range items {
		b.Add(item)
	}
	return b
}

// Add appends name unless it is empty, the placeholder, or already present.
// It reports whether the list changed.
func (b *MedicationListBuilder) Add(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" || name == DrugPlaceholder {
		return false
	}
	for _, existing := range b.items {
		if existing == name {
			return false
		}
	}
	b.items = append(b.items, name)
	return true
}

// Remove deletes the entry at index i. Out of range indexes are ignored.
func (b *MedicationListBuilder) Remove(i int) bool {
	if i < 0 || i >= len(b.items) {
		return false
	}
	b.items = append(b.items[:i], b.items[i+1:]...)
	return true
}

func (b *MedicationListBuilder) Len() int {
	return len(b.items)
}

// Items returns a copy of the list, or nil when empty.
func (b *MedicationListBuilder) Items() []string {
	if len(b.items) == 0 {
		return nil
	}
	return cloneList(b.items)
}
