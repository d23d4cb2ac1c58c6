package services

import "errors"

// Domain-rule violations surfaced to clients as 4xx responses.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("username or email already taken")
	ErrSelfRequest        = errors.New("cannot send a friend request to yourself")
	ErrNotAllowed         = errors.New("action not allowed")
	ErrNotFriends         = errors.New("users are not friends")
	ErrPhotoRequired      = errors.New("a photo or photo_url is required")
	ErrEmptyMessage       = errors.New("message text or attachment is required")
	ErrTitleRequired      = errors.New("title is required")
	ErrNameRequired       = errors.New("name is required")
)
