package feed

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const categoryFeed = `<?xml version="1.0" encoding="UTF-8"?>
<yml_catalog>
	<shop>
		<categories>
			<category id="1">Kids</category>
			<category id="2" parentId="1">Electronics</category>
			<category id="3" parentId="2">Kids Electronics</category>
			<category id="7">Home</category>
		</categories>
	</shop>
</yml_catalog>`

func TestLoadHierarchy(t *testing.T) {
	h, err := LoadHierarchy(strings.NewReader(categoryFeed))
	assert.Nil(t, err)
	assert.Equal(t, 4, h.Len())
}

func TestPathRootToLeaf(t *testing.T) {
	h, err := LoadHierarchy(strings.NewReader(categoryFeed))
	assert.Nil(t, err)

	assert.Equal(t, []string{"Kids", "Electronics", "Kids Electronics"}, h.Path(3))
	assert.Equal(t, []string{"Kids", "Electronics"}, h.Path(2))
	assert.Equal(t, []string{"Home"}, h.Path(7))
}

func TestPathUnknownAndZero(t *testing.T) {
	h, err := LoadHierarchy(strings.NewReader(categoryFeed))
	assert.Nil(t, err)

	assert.Empty(t, h.Path(0))
	assert.Empty(t, h.Path(999))
}

func TestLoadHierarchyBadID(t *testing.T) {
	_, err := LoadHierarchy(strings.NewReader(
		`<categories><category id="abc">Broken</category></categories>`,
	))
	assert.NotNil(t, err)
}

func TestLoadHierarchyEmptyFeed(t *testing.T) {
	h, err := LoadHierarchy(strings.NewReader(`<yml_catalog><shop/></yml_catalog>`))
	assert.Nil(t, err)
	assert.Equal(t, 0, h.Len())
	assert.Empty(t, h.Path(1))
}
