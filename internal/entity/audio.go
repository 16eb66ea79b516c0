package entity

import "time"

// Audio links a recording to the sentence it reads aloud.
type Audio struct {
	ID         int64
	SentenceID int64
	UserID     *int64
	Author     string
	LicenceID  int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Attribution returns the contributor of the audio.
func (a *Audio) Attribution() Attribution {
	return Attribution{UserID: a.UserID, Author: a.Author}
}

// SetAttribution replaces the contributor; the other side is cleared.
func (a *Audio) SetAttribution(attr Attribution) {
	attr = attr.Normalize()
	a.UserID = attr.UserID
	a.Author = attr.Author
}

// Normalize ensures defaults & constraints before persistence.
func (a *Audio) Normalize(now time.Time) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	a.SetAttribution(a.Attribution())
}

// Validate checks the fields that every persisted audio must satisfy.
func (a *Audio) Validate() error {
	if a.SentenceID <= 0 {
		return ErrInvalidSentenceID
	}
	if a.LicenceID < 0 {
		return ErrInvalidLicenceID
	}
	return a.Attribution().Validate()
}

// AudioDraft carries the input of a new audio record.
type AudioDraft struct {
	SentenceID  int64
	LicenceID   *int64
	Attribution Attribution
}

// AudioChanges carries a partial update. Nil fields are left untouched;
// Attribution replaces both user and author at once.
type AudioChanges struct {
	SentenceID  *int64
	LicenceID   *int64
	Attribution *Attribution
}

// Apply merges the changes into a copy of audio.
func (c AudioChanges) Apply(audio Audio) Audio {
	if c.SentenceID != nil {
		audio.SentenceID = *c.SentenceID
	}
	if c.LicenceID != nil {
		audio.LicenceID = *c.LicenceID
	}
	if c.Attribution != nil {
		audio.SetAttribution(*c.Attribution)
	}
	return audio
}
