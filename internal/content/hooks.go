package content

import (
	"context"
	"fmt"

	"github.com/conduit-lang/contenttype/internal/hooks"
)

// Actions published by the engine. Payloads:
//
//	insertedContentType(id int64, ct *ContentType)
//	updatedContentType(id int64, ct, old *ContentType)
//	deletedContentType(id int64, old *ContentType)
//	insertedContent(id, typeID int64)
//	updatedContent(id, typeID int64, old *Content)
//	deletedContent(old *Content, typeID int64, ct *ContentType)
//	insertedTerm(id int64, set TermSet)
//	updatedTerm(id int64, set TermSet, old *Term)
//	deletedTerm(old *Term, set TermSet)
//	setContentTerm(contentID, typeID int64, set TermSet, termID int64)
//	deletedContentTerm(contentID, typeID int64, set TermSet, termID int64)
//	insertedComment(id, typeID int64)
//	deletedComment(old *Comment, typeID int64)
const (
	HookInsertedContentType = "insertedContentType"
	HookUpdatedContentType  = "updatedContentType"
	HookDeletedContentType  = "deletedContentType"
	HookInsertedContent     = "insertedContent"
	HookUpdatedContent      = "updatedContent"
	HookDeletedContent      = "deletedContent"
	HookInsertedTerm        = "insertedTerm"
	HookUpdatedTerm         = "updatedTerm"
	HookDeletedTerm         = "deletedTerm"
	HookSetContentTerm      = "setContentTerm"
	HookDeletedContentTerm  = "deletedContentTerm"
	HookInsertedComment     = "insertedComment"
	HookDeletedComment      = "deletedComment"
)

// Filters applied by the engine. The value is the entity being returned.
//
//	getContentType(*ContentType)
//	getContent(*Content, ct *ContentType)
//	getTerm(*Term, set TermSet)
//	getUser(*Actor)
const (
	FilterGetContentType = "getContentType"
	FilterGetContent     = "getContent"
	FilterGetTerm        = "getTerm"
	FilterGetUser        = "getUser"
)

// Priorities of the engine's own subscribers. Provisioning runs before any
// default-priority subscriber so that later ones see the new storage.
const (
	priorityProvision = -100
	priorityCascade   = -100
)

type hookRef struct {
	name string
	id   string
}

func (s *Service) registerSubscribers() {
	on := func(name string, fn hooks.ActionFunc, priority int) {
		id := "content." + name
		s.bus.On(name, fn, hooks.Options{ID: id, Priority: priority})
		s.subs = append(s.subs, hookRef{name: name, id: id})
	}

	on(HookInsertedContentType, s.onInsertedContentType, priorityProvision)
	on(HookUpdatedContentType, s.onUpdatedContentType, priorityProvision)
	on(HookDeletedContentType, s.onDeletedContentType, priorityCascade)
	on(HookDeletedContent, s.onDeletedContent, priorityCascade)
	on(HookDeletedTerm, s.onDeletedTerm, priorityCascade)
}

// arg extracts a typed hook argument
func arg[T any](args []any, i int) (T, error) {
	var zero T
	if i >= len(args) {
		return zero, fmt.Errorf("missing hook argument %d", i)
	}
	v, ok := args[i].(T)
	if !ok {
		return zero, fmt.Errorf("hook argument %d: unexpected type %T", i, args[i])
	}
	return v, nil
}

// applyFilter runs a filter chain and asserts the result type
func applyFilter[T any](ctx context.Context, bus *hooks.Bus, name string, value T, args ...any) (T, error) {
	out, err := bus.Apply(ctx, name, value, args...)
	if err != nil {
		return value, fmt.Errorf("%s filter: %w", name, err)
	}
	typed, ok := out.(T)
	if !ok {
		return value, fmt.Errorf("%s filter returned %T", name, out)
	}
	return typed, nil
}
