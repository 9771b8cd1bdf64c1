package pipeline

import (
	"testing"

	"batchwatch/internal/model"

	"github.com/stretchr/testify/assert"
)

func ev(kind model.EventKind, path string) model.ChangeEvent {
	return model.ChangeEvent{Kind: kind, Path: path}
}

func TestLatestFilesEvents(t *testing.T) {
	in := []model.ChangeEvent{
		ev(model.EventChange, "a"),
		ev(model.EventChange, "b"),
		ev(model.EventChange, "a"),
		ev(model.EventDelete, "c"),
	}

	got := LatestFilesEvents(in)

	assert.Equal(t, []model.ChangeEvent{
		ev(model.EventChange, "b"),
		ev(model.EventChange, "a"),
		ev(model.EventDelete, "c"),
	}, got)
}

func TestLatestFilesEventsIdempotent(t *testing.T) {
	in := []model.ChangeEvent{
		ev(model.EventCreate, "/x"),
		ev(model.EventChange, "/y"),
		ev(model.EventChange, "/x"),
		ev(model.EventDelete, "/y"),
		ev(model.EventCreate, "/z"),
		ev(model.EventChange, "/x"),
	}

	once := LatestFilesEvents(in)
	assert.Equal(t, once, LatestFilesEvents(once))
	assert.Equal(t, []model.ChangeEvent{
		ev(model.EventDelete, "/y"),
		ev(model.EventCreate, "/z"),
		ev(model.EventChange, "/x"),
	}, once)
}

func TestLatestFilesEventsKeepsLastKind(t *testing.T) {
	in := []model.ChangeEvent{
		ev(model.EventCreate, "/tmp/f"),
		ev(model.EventDelete, "/tmp/f"),
	}

	assert.Equal(t, []model.ChangeEvent{ev(model.EventDelete, "/tmp/f")}, LatestFilesEvents(in))
}

func TestLatestFilesEventsDoesNotMutateInput(t *testing.T) {
	in := []model.ChangeEvent{
		ev(model.EventChange, "a"),
		ev(model.EventChange, "b"),
		ev(model.EventChange, "a"),
	}
	orig := model.CloneEvents(in)

	_ = LatestFilesEvents(in)
	assert.Equal(t, orig, in)
}

func TestLatestFilesEventsEmpty(t *testing.T) {
	assert.Empty(t, LatestFilesEvents(nil))
	assert.Empty(t, LatestFilesEvents([]model.ChangeEvent{}))
}
