package content

import (
	"context"
	"strings"
	"time"

	"github.com/conduit-lang/contenttype/internal/storage"
)

// Comment statuses
const (
	CommentPublish = "publish"
	CommentPending = "pending"
	CommentSpam    = "spam"
)

// Comment is a reader comment on a content item
type Comment struct {
	ID          int64     `json:"ID"`
	TypeID      int64     `json:"typeID"`
	ContentID   int64     `json:"contentID"`
	AuthorID    int64     `json:"authorID,omitempty"`
	Author      string    `json:"author,omitempty"`
	AuthorEmail string    `json:"authorEmail,omitempty"`
	Status      string    `json:"status"`
	Comment     string    `json:"comment"`
	Created     time.Time `json:"created"`
	Updated     time.Time `json:"updated"`
}

// CommentInput carries the attributes of a comment add or update. On update
// only Status and Comment change.
type CommentInput struct {
	ID          int64
	TypeID      int64
	ContentID   int64
	AuthorID    int64
	Author      string
	AuthorEmail string
	Status      string
	Comment     string
}

// CommentQuery selects comments of one type
type CommentQuery struct {
	TypeID    int64
	ContentID int64
	Status    string
	Desc      bool
	Limit     int
	Offset    int
}

func commentCollection(name string) storage.Collection {
	return storage.Collection{
		Name: name,
		Columns: []storage.Column{
			{Name: storage.ColumnID, Type: storage.TypeInteger, PrimaryKey: true},
			{Name: "content_id", Type: storage.TypeInteger, Index: true},
			{Name: "author_id", Type: storage.TypeInteger},
			{Name: "author", Type: storage.TypeText},
			{Name: "author_email", Type: storage.TypeText},
			{Name: "status", Type: storage.TypeText},
			{Name: "comment", Type: storage.TypeText},
			{Name: "created", Type: storage.TypeText},
			{Name: "updated", Type: storage.TypeText},
		},
	}
}

// AddComment stores a comment on a content item of a type with comments
func (s *Service) AddComment(ctx context.Context, in CommentInput) (*Comment, error) {
	ct, err := s.commentType(ctx, in.TypeID)
	if err != nil {
		return nil, err
	}

	v := &validation{}
	if strings.TrimSpace(in.Comment) == "" {
		v.add("comment", "is required")
	}
	if in.Status == "" {
		in.Status = CommentPending
	}
	validateCommentStatus(v, in.Status)
	if in.AuthorID <= 0 && strings.TrimSpace(in.Author) == "" {
		actor, err := s.currentUser(ctx)
		if err != nil {
			return nil, err
		}
		if actor == nil {
			v.add("author", "an author ID or name is required")
		} else {
			in.AuthorID = actor.ID
		}
	}
	if err := v.err(); err != nil {
		return nil, err
	}
	if _, err := s.GetContent(ctx, ct.ID, in.ContentID); err != nil {
		return nil, err
	}

	coll := ct.CommentsCollection()
	id, err := s.store.IncrementID(ctx, coll)
	if err != nil {
		return nil, storageErr(err)
	}

	stamp := s.timestamp()
	err = s.store.Insert(ctx, coll, storage.Record{
		storage.ColumnID: id,
		"content_id":     in.ContentID,
		"author_id":      in.AuthorID,
		"author":         in.Author,
		"author_email":   in.AuthorEmail,
		"status":         in.Status,
		"comment":        in.Comment,
		"created":        stamp,
		"updated":        stamp,
	})
	if err != nil {
		return nil, storageErr(err)
	}

	s.fire(ctx, HookInsertedComment, id, ct.ID)
	return s.GetComment(ctx, ct.ID, id)
}

// UpdateComment changes the status or text of a comment
func (s *Service) UpdateComment(ctx context.Context, in CommentInput) (*Comment, error) {
	if in.ID <= 0 {
		return nil, invalid("ID", "is required")
	}
	ct, err := s.commentType(ctx, in.TypeID)
	if err != nil {
		return nil, err
	}

	v := &validation{}
	patch := storage.Record{"updated": s.timestamp()}
	if in.Status != "" {
		validateCommentStatus(v, in.Status)
		patch["status"] = in.Status
	}
	if in.Comment != "" {
		if strings.TrimSpace(in.Comment) == "" {
			v.add("comment", "must not be blank")
		}
		patch["comment"] = in.Comment
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	n, err := s.store.Update(ctx, ct.CommentsCollection(), []storage.Condition{storage.Eq(storage.ColumnID, in.ID)}, patch)
	if err != nil {
		return nil, storageErr(err)
	}
	if n == 0 {
		return nil, notFound("comment", in.ID)
	}
	return s.GetComment(ctx, ct.ID, in.ID)
}

// DeleteComment removes a comment
func (s *Service) DeleteComment(ctx context.Context, typeID, id int64) error {
	old, err := s.GetComment(ctx, typeID, id)
	if err != nil {
		return err
	}
	ct, err := s.commentType(ctx, typeID)
	if err != nil {
		return err
	}

	_, err = s.store.Delete(ctx, ct.CommentsCollection(), []storage.Condition{storage.Eq(storage.ColumnID, id)})
	if err != nil {
		return storageErr(err)
	}
	s.fire(ctx, HookDeletedComment, old, ct.ID)
	return nil
}

// GetComment returns a comment by ID
func (s *Service) GetComment(ctx context.Context, typeID, id int64) (*Comment, error) {
	if id <= 0 {
		return nil, invalid("ID", "must be a positive integer")
	}
	ct, err := s.commentType(ctx, typeID)
	if err != nil {
		return nil, err
	}

	records, err := s.store.Get(ctx, ct.CommentsCollection(), storage.Query{
		Where: []storage.Condition{storage.Eq(storage.ColumnID, id)},
		Limit: 1,
	})
	if err != nil {
		return nil, storageErr(err)
	}
	if len(records) == 0 {
		return nil, notFound("comment", id)
	}
	return commentFromRecord(ct.ID, records[0]), nil
}

// GetComments lists comments oldest first, or newest first with Desc
func (s *Service) GetComments(ctx context.Context, q CommentQuery) ([]*Comment, error) {
	ct, err := s.commentType(ctx, q.TypeID)
	if err != nil {
		return nil, err
	}

	sq := storage.Query{OrderBy: storage.ColumnID, Desc: q.Desc, Limit: q.Limit, Offset: q.Offset}
	if q.ContentID > 0 {
		sq.Where = append(sq.Where, storage.Eq("content_id", q.ContentID))
	}
	if q.Status != "" {
		sq.Where = append(sq.Where, storage.Eq("status", q.Status))
	}

	records, err := s.store.Get(ctx, ct.CommentsCollection(), sq)
	if err != nil {
		return nil, storageErr(err)
	}
	comments := make([]*Comment, 0, len(records))
	for _, rec := range records {
		comments = append(comments, commentFromRecord(ct.ID, rec))
	}
	return comments, nil
}

// commentType loads a content type that accepts comments
func (s *Service) commentType(ctx context.Context, typeID int64) (*ContentType, error) {
	ct, err := s.contentTypeFor(ctx, typeID)
	if err != nil {
		return nil, err
	}
	if !ct.HasComments {
		return nil, invalid("typeID", "%s does not accept comments", ct.Slug)
	}
	return ct, nil
}

func validateCommentStatus(v *validation, status string) {
	switch status {
	case CommentPublish, CommentPending, CommentSpam:
	default:
		v.add("status", "must be publish, pending or spam, got %q", status)
	}
}

func commentFromRecord(typeID int64, rec storage.Record) *Comment {
	id, _ := storage.Int64(rec[storage.ColumnID])
	contentID, _ := storage.Int64(rec["content_id"])
	authorID, _ := storage.Int64(rec["author_id"])
	return &Comment{
		ID:          id,
		TypeID:      typeID,
		ContentID:   contentID,
		AuthorID:    authorID,
		Author:      storage.String(rec["author"]),
		AuthorEmail: storage.String(rec["author_email"]),
		Status:      storage.String(rec["status"]),
		Comment:     storage.String(rec["comment"]),
		Created:     parseTime(rec["created"]),
		Updated:     parseTime(rec["updated"]),
	}
}
