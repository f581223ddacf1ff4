package objects

import (
	"context"
	"errors"
	"testing"

	"label-matcher/core/storage/mocks"
	"label-matcher/feature/labels/models"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestFetch(t *testing.T) {
	client := mocks.NewMemory("labels")
	client.Put("labels", "incoming/a.pdf", []byte("pdf"))
	client.Put("labels", "incoming/empty.pdf", nil)
	b := NewBucket(client, "labels")
	ctx := context.Background()

	data, err := b.Fetch(ctx, "incoming/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("pdf"), data)

	_, err = b.Fetch(ctx, "incoming/missing.pdf")
	assert.ErrorIs(t, err, models.ErrPermanentData)

	_, err = b.Fetch(ctx, "incoming/empty.pdf")
	assert.ErrorIs(t, err, models.ErrPermanentData)

	client.FailGet["incoming/a.pdf"] = 1
	_, err = b.Fetch(ctx, "incoming/a.pdf")
	assert.True(t, models.IsTransient(err))
}

func TestMove_Idempotent(t *testing.T) {
	client := mocks.NewMemory("labels")
	client.Put("labels", "incoming/a.pdf", []byte("pdf"))
	b := NewBucket(client, "labels")
	ctx := context.Background()

	require.NoError(t, b.Move(ctx, "incoming/a.pdf", "processed/a.pdf"))
	assert.False(t, client.Has("labels", "incoming/a.pdf"))
	assert.True(t, client.Has("labels", "processed/a.pdf"))

	// Re-running a finished move succeeds without copying again.
	require.NoError(t, b.Move(ctx, "incoming/a.pdf", "processed/a.pdf"))
	assert.Equal(t, 1, client.Copies)

	err := b.Move(ctx, "incoming/none.pdf", "processed/none.pdf")
	assert.ErrorIs(t, err, models.ErrPermanentData)
}

func TestMove_RemoveFailureIsRetryable(t *testing.T) {
	client := mocks.NewMemory("labels")
	client.Put("labels", "incoming/a.pdf", []byte("pdf"))
	client.FailRemove["incoming/a.pdf"] = 1
	b := NewBucket(client, "labels")
	ctx := context.Background()

	err := b.Move(ctx, "incoming/a.pdf", "processed/a.pdf")
	assert.True(t, models.IsTransient(err))

	require.NoError(t, b.Move(ctx, "incoming/a.pdf", "processed/a.pdf"))
	assert.Equal(t, []string{"processed/a.pdf"}, client.Keys("labels"))
}

func TestMove_CopiesThenRemoves(t *testing.T) {
	client := new(mocks.Client)
	client.On("CopyObject", mock.Anything,
		minio.CopyDestOptions{Bucket: "labels", Object: "processed/a.pdf"},
		minio.CopySrcOptions{Bucket: "labels", Object: "incoming/a.pdf"},
	).Return(minio.UploadInfo{}, nil).Once()
	client.On("RemoveObject", mock.Anything, "labels", "incoming/a.pdf", mock.Anything).Return(nil).Once()

	err := NewBucket(client, "labels").Move(context.Background(), "incoming/a.pdf", "processed/a.pdf")
	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestMove_CopyFailureKeepsSource(t *testing.T) {
	client := new(mocks.Client)
	client.On("CopyObject", mock.Anything, mock.Anything, mock.Anything).
		Return(minio.UploadInfo{}, errors.New("connection reset")).Once()

	err := NewBucket(client, "labels").Move(context.Background(), "incoming/a.pdf", "processed/a.pdf")
	assert.True(t, models.IsTransient(err))
	client.AssertNotCalled(t, "RemoveObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRemove(t *testing.T) {
	client := new(mocks.Client)
	client.On("RemoveObject", mock.Anything, "labels", "errors/a.pdf", mock.Anything).Return(nil).Once()
	client.On("RemoveObject", mock.Anything, "labels", "errors/gone.pdf", mock.Anything).
		Return(minio.ErrorResponse{Code: "NoSuchKey"}).Once()
	client.On("RemoveObject", mock.Anything, "labels", "errors/b.pdf", mock.Anything).
		Return(errors.New("connection reset")).Once()
	b := NewBucket(client, "labels")
	ctx := context.Background()

	assert.NoError(t, b.Remove(ctx, "errors/a.pdf"))
	assert.NoError(t, b.Remove(ctx, "errors/gone.pdf"))
	assert.True(t, models.IsTransient(b.Remove(ctx, "errors/b.pdf")))
	client.AssertExpectations(t)
}

func TestRebase(t *testing.T) {
	assert.Equal(t, "processed/2024/a.pdf", Rebase("incoming/2024/a.pdf", "incoming/", "processed/"))
	assert.Equal(t, "errors/a.pdf", Rebase("a.pdf", "incoming/", "errors/"))
}
