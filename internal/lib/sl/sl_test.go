package sl_test

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/piratproject/pirat-backend/internal/lib/sl"
)

func TestErr_ReturnsCorrectAttr(t *testing.T) {
	err := errors.New("something went wrong")
	attr := sl.Err(err)

	assert.Equal(t, "error", attr.Key)
	assert.Equal(t, slog.StringValue("something went wrong"), attr.Value)
}

func TestErr_NilError(t *testing.T) {
	assert.Panics(t, func() {
		_ = sl.Err(nil)
	})
}

func TestOpAndCollection(t *testing.T) {
	op := sl.Op("storage.Save")
	assert.Equal(t, "op", op.Key)
	assert.Equal(t, slog.StringValue("storage.Save"), op.Value)

	col := sl.Collection("users")
	assert.Equal(t, "collection", col.Key)
	assert.Equal(t, slog.StringValue("users"), col.Value)
}
