package feed

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Hierarchy holds the category tree declared in the feed's <categories>
// section: display names and parent pointers keyed by category id.
// It is built once per run and never mutated afterwards.
type Hierarchy struct {
	names   map[int]string
	parents map[int]int
}

type categoryXML struct {
	ID     string `xml:"id,attr"`
	Parent string `xml:"parentId,attr"`
	Name   string `xml:",chardata"`
}

// LoadHierarchy scans r for <category> elements and collects their ids,
// names and parent pointers. Every other element is skipped, so the
// reader can be the complete feed.
func LoadHierarchy(r io.Reader) (*Hierarchy, error) {
	h := &Hierarchy{
		names:   make(map[int]string),
		parents: make(map[int]int),
	}

	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("scan categories - %w", err)
		}

		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "category" {
			continue
		}

		var c categoryXML
		if err := dec.DecodeElement(&c, &se); err != nil {
			return nil, fmt.Errorf("decode category - %w", err)
		}

		id, err := strconv.Atoi(strings.TrimSpace(c.ID))
		if err != nil {
			return nil, fmt.Errorf("category id %q - %w", c.ID, err)
		}

		h.names[id] = strings.TrimSpace(c.Name)
		if parent := strings.TrimSpace(c.Parent); parent != "" {
			pid, err := strconv.Atoi(parent)
			if err != nil {
				return nil, fmt.Errorf("category %d parentId %q - %w", id, parent, err)
			}
			h.parents[id] = pid
		}
	}

	return h, nil
}

// LoadHierarchyFile opens path and runs LoadHierarchy over it.
func LoadHierarchyFile(path string) (*Hierarchy, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open feed - %w", err)
	}
	defer f.Close()

	return LoadHierarchy(f)
}

// Len returns the number of declared categories.
func (h *Hierarchy) Len() int {
	return len(h.names)
}

// Path walks the parent chain upward from id and returns the category
// names in root-to-leaf order. Id 0 and ids missing from the feed yield
// an empty path. Parent cycles are not detected; a feed declaring one
// makes this walk loop forever.
func (h *Hierarchy) Path(id int) []string {
	var path []string
	for cur := id; cur != 0; cur = h.parents[cur] {
		if name := h.names[cur]; name != "" {
			path = append([]string{name}, path...)
		}
	}
	return path
}
