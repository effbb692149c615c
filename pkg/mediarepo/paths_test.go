package mediarepo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathBuilders(t *testing.T) {
	assert.Equal(t, "/media/image", CategoryPath("image"))
	assert.Equal(t, "/media/image/jpeg", TypePath("image", "jpeg"))
	assert.Equal(t, "/media/image/jpeg/cat", FileNodePath("image", "jpeg", "cat"))
	assert.Equal(t, "/media/image/jpeg/cat/content", ResourceNodePath("image", "jpeg", "cat"))

	assert.Equal(t, "/media/doc", CategoryPathForMimeType(MimeTypePDF))
	assert.Equal(t, "/media/doc/pdf", TypePathForMimeType(MimeTypePDF))
	assert.Equal(t, "/media/other/B64/blob", FileNodePathForMimeType(MimeTypeOctetStream, "blob"))
	assert.Equal(t, "/media/video/mp4/clip/content", ResourceNodePathForMimeType(MimeTypeMP4, "clip"))

	r := Resource{FileName: "cat", MimeType: MimeTypeJPEG}
	assert.Equal(t, "/media/image/jpeg/cat", FileNodePathForResource(r))
	assert.Equal(t, "/media/image/jpeg/cat/content", ResourceNodePathForResource(r))
}

func TestCategoryFromPath(t *testing.T) {
	tests := []struct {
		path    string
		want    CategoryType
		wantErr error
	}{
		{path: "/media/image/jpeg/cat", want: CategoryImage},
		{path: "/media/doc", want: CategoryDocument},
		{path: "/media/other/B64/x/content", want: CategoryOther},
		{path: "/media", wantErr: ErrResourceNotFound},
		{path: "/media/", wantErr: ErrResourceNotFound},
		{path: "/media/audio/mp3", wantErr: ErrCategoryTypeNotSupported},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := CategoryFromPath(tt.path)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
