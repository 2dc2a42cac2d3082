// Package field enumerates the roles a text field of a feed entry can play
// and the static metadata attached to each role.
package field

import (
	"fmt"
	"strings"
)

// Role identifies a field of an entry.
type Role int

const (
	Any Role = iota
	Title
	Description
	Text
	Category
	Tags
	Author
	Publisher
	Contributors
	Feed
	Lang
)

// Meta is the static description of a role.
type Meta struct {
	Name   string
	Prefix string
	Weight float64
	Stem   bool
	Meta   bool
}

var roles = map[Role]Meta{
	Title:        {Name: "title", Prefix: "TI", Weight: 2.0, Stem: true},
	Description:  {Name: "desc", Prefix: "DE", Weight: 1.0, Stem: true},
	Text:         {Name: "text", Prefix: "TX", Weight: 1.0, Stem: true},
	Category:     {Name: "category", Prefix: "CA", Weight: 1.0, Stem: true},
	Tags:         {Name: "tags", Prefix: "TG", Weight: 1.0, Stem: true},
	Author:       {Name: "author", Prefix: "AU", Weight: 1.5, Meta: true},
	Publisher:    {Name: "publisher", Prefix: "PU", Weight: 1.0, Meta: true},
	Contributors: {Name: "contributors", Prefix: "CO", Weight: 1.0, Meta: true},
	Feed:         {Name: "feed", Prefix: "FE", Weight: 1.0, Meta: true},
	Lang:         {Name: "lang", Prefix: "LA", Weight: 0.5, Meta: true},
}

// All lists the concrete roles in the order their fields are processed.
var All = []Role{Title, Description, Text, Category, Tags, Author, Publisher, Contributors, Feed, Lang}

func (r Role) Meta() Meta {
	return roles[r]
}

func (r Role) Prefix() string {
	return roles[r].Prefix
}

func (r Role) Weight() float64 {
	return roles[r].Weight
}

func (r Role) Stem() bool {
	return roles[r].Stem
}

func (r Role) IsMeta() bool {
	return roles[r].Meta
}

func (r Role) String() string {
	if r == Any {
		return "any"
	}
	if m, ok := roles[r]; ok {
		return m.Name
	}
	return fmt.Sprintf("role(%d)", int(r))
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	role, err := Parse(string(b))
	if err != nil {
		return err
	}
	*r = role
	return nil
}

// Parse maps a field name (or an empty string, meaning all fields) to a Role.
func Parse(name string) (Role, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == "any" || name == "all" {
		return Any, nil
	}
	for role, m := range roles {
		if m.Name == name {
			return role, nil
		}
	}
	return Any, fmt.Errorf("unknown field %q", name)
}

// ByPrefix returns the role owning a two-character prefix.
func ByPrefix(prefix string) (Role, bool) {
	for role, m := range roles {
		if m.Prefix == prefix {
			return role, true
		}
	}
	return Any, false
}

// Value is one field of an entry.
type Value struct {
	Role Role
	Text string
}

// FromMap turns named field texts into values in processing order. Empty
// texts are dropped.
func FromMap(named map[string]string) ([]Value, error) {
	byRole := make(map[Role]string, len(named))
	for name, text := range named {
		role, err := Parse(name)
		if err != nil {
			return nil, err
		}
		if role == Any {
			return nil, fmt.Errorf("field %q does not name a single field", name)
		}
		if strings.TrimSpace(text) != "" {
			byRole[role] = text
		}
	}
	out := make([]Value, 0, len(byRole))
	for _, role := range All {
		if text, ok := byRole[role]; ok {
			out = append(out, Value{Role: role, Text: text})
		}
	}
	return out, nil
}
