package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/eslsoft/audiolink/internal/entity"
)

func TestHasAudio(t *testing.T) {
	db := newFakeDB()
	db.audios[1] = &entity.Audio{ID: 1, SentenceID: 42, Author: "bob"}
	uc := NewSearchAttributeUsecase(fakeAudios{db})
	ctx := context.Background()

	if ok, err := uc.HasAudio(ctx, 42); err != nil || !ok {
		t.Fatalf("expected sentence 42 to have audio, got %v %v", ok, err)
	}
	if ok, err := uc.HasAudio(ctx, 43); err != nil || ok {
		t.Fatalf("expected sentence 43 without audio, got %v %v", ok, err)
	}
	if _, err := uc.HasAudio(ctx, 0); !errors.Is(err, entity.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestHasAudioBatch(t *testing.T) {
	db := newFakeDB()
	db.audios[1] = &entity.Audio{ID: 1, SentenceID: 42, Author: "bob"}
	db.audios[2] = &entity.Audio{ID: 2, SentenceID: 7, Author: "ann"}
	uc := NewSearchAttributeUsecase(fakeAudios{db})

	got, err := uc.HasAudioBatch(context.Background(), []int64{42, 43, 7, 42, -1})
	if err != nil {
		t.Fatalf("HasAudioBatch returned error: %v", err)
	}
	want := map[int64]bool{42: true, 43: false, 7: true, -1: false}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for id, v := range want {
		if got[id] != v {
			t.Fatalf("sentence %d: got %v want %v", id, got[id], v)
		}
	}
}

func TestHasAudioReflectsLatestWrite(t *testing.T) {
	f := newAudioFixture(t)
	audio := f.create(t, 42, entity.AuthorAttribution("bob"))
	if !f.hasAudio(t, 42) {
		t.Fatal("expected audio after create")
	}
	if err := f.uc.Delete(context.Background(), audio.ID); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if f.hasAudio(t, 42) {
		t.Fatal("expected no audio after delete")
	}
}
