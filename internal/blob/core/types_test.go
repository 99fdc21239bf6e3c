package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateKey(t *testing.T) {
	got, err := ValidateKey("org-1/documents//d1/./minutes.pdf")
	require.NoError(t, err)
	assert.Equal(t, "org-1/documents/d1/minutes.pdf", got)

	for _, key := range []string{"", " ", "/etc/passwd", "org-1/../org-2/x"} {
		_, err := ValidateKey(key)
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
}

func TestSortByKeyAndCloneMetadata(t *testing.T) {
	infos := []Info{{Key: "b"}, {Key: "a/2"}, {Key: "a/1"}}
	SortByKey(infos)
	assert.Equal(t, []string{"a/1", "a/2", "b"}, []string{infos[0].Key, infos[1].Key, infos[2].Key})

	assert.Nil(t, CloneMetadata(nil))
	in := map[string]string{"k": "v"}
	out := CloneMetadata(in)
	out["k"] = "changed"
	assert.Equal(t, "v", in["k"])
}
