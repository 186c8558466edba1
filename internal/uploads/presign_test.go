package uploads

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prepstack/interviewd/internal/store"
)

func TestPresignIssuesTarget(t *testing.T) {
	t.Parallel()

	s := NewStubSigner(store.NewMemory(), "https://storage.example.com/")

	target, err := s.Presign(context.Background(), Request{
		SessionID:   "s1",
		ContentType: "audio/webm",
		Filename:    "answer.webm",
	})
	require.NoError(t, err)
	assert.Equal(t, "uploads/s1/answer.webm", target.StoragePath)
	assert.Equal(t, "https://storage.example.com/uploads/s1/answer.webm?signature=stub", target.UploadURL)
	assert.NotEmpty(t, target.RecordingID)
}

func TestPresignRejectsBadFilenames(t *testing.T) {
	t.Parallel()

	s := NewStubSigner(store.NewMemory(), "")

	for _, filename := range []string{"", "../secret.webm", "a/b.webm", `a\b.webm`, "..webm.."} {
		_, err := s.Presign(context.Background(), Request{SessionID: "s1", Filename: filename})
		assert.ErrorIs(t, err, ErrInvalidFilename, "filename %q", filename)
	}
}

func TestPresignDefaultBaseURL(t *testing.T) {
	t.Parallel()

	s := NewStubSigner(store.NewMemory(), "")

	target, err := s.Presign(context.Background(), Request{SessionID: "s1", Filename: "a.webm"})
	require.NoError(t, err)
	assert.Contains(t, target.UploadURL, "https://example.storage.local/")
}
