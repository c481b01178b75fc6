package usecase

import (
	"bytes"
	"mime/multipart"
	"testing"

	"taskflow/pkg/logger"
	"taskflow/pkg/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// multipartFile builds a FileHeader the way gin would hand it to a handler.
func multipartFile(t *testing.T, filename string) *multipart.FileHeader {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte("file contents"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	reader := multipart.NewReader(&buf, writer.Boundary())
	form, err := reader.ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { form.RemoveAll() })

	files := form.File["file"]
	require.Len(t, files, 1)
	return files[0]
}

func newTestCommentUseCase(taskRepo *fakeTaskRepo, publisher *recordingPublisher) (CommentUseCase, *fakeCommentRepo) {
	commentRepo := newFakeCommentRepo()
	return NewCommentUseCase(commentRepo, taskRepo, publisher, logger.New()), commentRepo
}

type fakeCommentRepo struct {
	comments map[string]*models.Comment
}

func newFakeCommentRepo() *fakeCommentRepo {
	return &fakeCommentRepo{comments: make(map[string]*models.Comment)}
}

func (f *fakeCommentRepo) Create(comment *models.Comment) error {
	comment.ID = uuid.New().String()
	f.comments[comment.ID] = comment
	return nil
}

func (f *fakeCommentRepo) GetByTask(taskID string, page, limit int) ([]models.Comment, int64, error) {
	var out []models.Comment
	for _, c := range f.comments {
		if c.TaskID == taskID {
			out = append(out, *c)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeCommentRepo) GetByID(id string) (*models.Comment, error) {
	c, ok := f.comments[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return c, nil
}

func (f *fakeCommentRepo) Delete(id string) error {
	if _, ok := f.comments[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(f.comments, id)
	return nil
}

func TestCreateComment_NotifiesEveryoneExceptAuthor(t *testing.T) {
	taskRepo := newFakeTaskRepo()
	publisher := &recordingPublisher{}
	taskUC := newTestTaskUseCase(taskRepo, newFakeAttachmentRepo(), newFakeStorage(), publisher)

	task, err := taskUC.CreateTask("creator", CreateTaskInput{
		Title:       "Ship release",
		AssigneeIDs: []string{"user-a", "user-b"},
	})
	require.NoError(t, err)
	publisher.events = nil

	uc, _ := newTestCommentUseCase(taskRepo, publisher)
	comment, err := uc.CreateComment(task.ID, "user-a", "Looks good to me")
	require.NoError(t, err)
	assert.NotEmpty(t, comment.ID)

	require.Len(t, publisher.events, 1)
	event := publisher.events[0]
	assert.Equal(t, "comment.created", event.Kind)
	assert.Equal(t, comment.ID, event.SubjectID)
	assert.Equal(t, []string{"user-b", "creator"}, event.InterestedUserIDs)
	assert.Equal(t, task.ID, event.Payload["taskId"])
	assert.Equal(t, "Looks good to me", event.Payload["content"])
	assert.Equal(t, "user-a", event.Payload["authorId"])
	assert.Equal(t, []string{"user-a", "user-b"}, event.Payload["assignees"])
	assert.Equal(t, "creator", event.Payload["createdBy"])
	assert.NotEmpty(t, event.Payload["timestamp"])
}

func TestCreateComment_TaskNotFound(t *testing.T) {
	uc, _ := newTestCommentUseCase(newFakeTaskRepo(), &recordingPublisher{})

	_, err := uc.CreateComment("missing", "user-a", "hello")
	assert.EqualError(t, err, "task not found")
}

func TestCreateComment_EmptyContent(t *testing.T) {
	uc, _ := newTestCommentUseCase(newFakeTaskRepo(), &recordingPublisher{})

	_, err := uc.CreateComment("task-1", "user-a", "")
	assert.Error(t, err)
}

func TestDeleteComment_OnlyAuthor(t *testing.T) {
	taskRepo := newFakeTaskRepo()
	publisher := &recordingPublisher{}
	taskUC := newTestTaskUseCase(taskRepo, newFakeAttachmentRepo(), newFakeStorage(), publisher)

	task, err := taskUC.CreateTask("creator", CreateTaskInput{Title: "Ship release"})
	require.NoError(t, err)

	uc, _ := newTestCommentUseCase(taskRepo, publisher)
	comment, err := uc.CreateComment(task.ID, "user-a", "hello")
	require.NoError(t, err)

	assert.Error(t, uc.DeleteComment(task.ID, comment.ID, "someone-else"))
	assert.NoError(t, uc.DeleteComment(task.ID, comment.ID, "user-a"))
	assert.EqualError(t, uc.DeleteComment(task.ID, comment.ID, "user-a"), "comment not found")
}

func TestGetComments(t *testing.T) {
	taskRepo := newFakeTaskRepo()
	publisher := &recordingPublisher{}
	taskUC := newTestTaskUseCase(taskRepo, newFakeAttachmentRepo(), newFakeStorage(), publisher)

	task, err := taskUC.CreateTask("creator", CreateTaskInput{Title: "Ship release"})
	require.NoError(t, err)

	uc, _ := newTestCommentUseCase(taskRepo, publisher)
	_, err = uc.CreateComment(task.ID, "user-a", "first")
	require.NoError(t, err)
	_, err = uc.CreateComment(task.ID, "user-b", "second")
	require.NoError(t, err)

	comments, total, err := uc.GetComments(task.ID, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, comments, 2)
}
