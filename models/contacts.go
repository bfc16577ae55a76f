package models

// Contacts is what a website fetch yields for one business.
type Contacts struct {
	Emails    []string          `json:"emails,omitempty"`
	Phones    []string          `json:"phones,omitempty"`
	Addresses []string          `json:"addresses,omitempty"`
	Social    map[string]string `json:"socialMedia,omitempty"`
}

// Empty reports whether nothing was found.
func (c *Contacts) Empty() bool {
	return c == nil || (len(c.Emails) == 0 && len(c.Phones) == 0 && len(c.Addresses) == 0 && len(c.Social) == 0)
}
