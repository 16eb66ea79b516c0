package entity

import "strings"

// Attribution identifies who supplied an audio recording: either a registered
// user or the free-text name of an unregistered contributor, never both.
type Attribution struct {
	UserID *int64
	Author string
}

// UserAttribution attributes audio to a registered user.
func UserAttribution(userID int64) Attribution {
	return Attribution{UserID: &userID}
}

// AuthorAttribution attributes audio to an unregistered contributor.
func AuthorAttribution(author string) Attribution {
	return Attribution{Author: author}
}

// ValidAttribution reports whether exactly one of userID or author is set.
func ValidAttribution(userID *int64, author string) bool {
	hasUser := userID != nil && *userID > 0
	hasAuthor := strings.TrimSpace(author) != ""
	return hasUser != hasAuthor
}

// Validate returns ErrInvalidAttribution unless exactly one side is set.
func (a Attribution) Validate() error {
	if !ValidAttribution(a.UserID, a.Author) {
		return ErrInvalidAttribution
	}
	return nil
}

// Normalize trims the author and drops non-positive user ids.
func (a Attribution) Normalize() Attribution {
	out := Attribution{Author: strings.TrimSpace(a.Author)}
	if a.UserID != nil && *a.UserID > 0 {
		id := *a.UserID
		out.UserID = &id
	}
	return out
}
