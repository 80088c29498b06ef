package service

import "errors"

var (
	// ErrChildBlockingCompletion is returned when a parent cannot be completed
	// because a direct child is in_progress or blocked
	ErrChildBlockingCompletion = errors.New("child task blocks parent completion")

	// ErrUnknownTask is returned when a referenced task id does not exist
	ErrUnknownTask = errors.New("unknown task")

	// ErrIncompleteChildren is returned by the bulk path when a task cannot be
	// completed because not all of its children are already completed
	ErrIncompleteChildren = errors.New("task has incomplete children")

	// ErrInvalidParentState is returned by the bulk path when a task cannot be
	// blocked because its parent is already completed
	ErrInvalidParentState = errors.New("invalid parent state")

	// ErrSelfParentTask is returned when a parent assignment would make a task
	// its own parent
	ErrSelfParentTask = errors.New("task cannot be its own parent")

	// ErrWriteForbidden is returned when the actor's role does not permit the
	// attempted write
	ErrWriteForbidden = errors.New("write operation forbidden")

	// ErrInvalidStatus is returned when a requested status is not one of the
	// four task statuses
	ErrInvalidStatus = errors.New("invalid status")
)
