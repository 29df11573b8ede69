package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeID(t *testing.T) {
	// CIDv1 raw sha2-256 of the empty input
	assert.Equal(t, "bafkreihdwdcefgh4dqkjv67uzcmw7ojee6xedzdetojuzjevtenxquvyku", ComputeID(nil))

	id := ComputeID([]byte(`{"title":"my first blog","content":"hello"}`))
	assert.True(t, strings.HasPrefix(id, "bafkrei"))
	assert.Len(t, id, 59)
	assert.Equal(t, id, ComputeID([]byte(`{"title":"my first blog","content":"hello"}`)))
	assert.NotEqual(t, id, ComputeID([]byte(`{"title":"my first blog","content":"hello!"}`)))
}

func TestValidateID(t *testing.T) {
	assert.NoError(t, ValidateID(ComputeID([]byte("x"))))

	for _, id := range []string{"", "b", "Qmfoo", "bafkrei!!", "first blog content hash", "bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi"} {
		assert.ErrorIs(t, ValidateID(id), ErrInvalidID, "id %q", id)
	}
}

func TestVerify(t *testing.T) {
	data := []byte("cover image bytes")
	id := ComputeID(data)

	assert.NoError(t, Verify(id, data))
	assert.ErrorIs(t, Verify(id, []byte("tampered")), ErrCorrupt)
}
