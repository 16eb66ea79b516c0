package database

import (
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

// Table names shared with the storage adapters.
const (
	SentencesTable            = "sentences"
	UsersTable                = "users"
	SentencesTranslationTable = "sentences_translations"
	AudiosTable               = "audios"
	ReindexFlagsTable         = "reindex_flags"
	PendingReindexTable       = "pending_reindex"
)

var (
	sentencesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "lang", Type: field.TypeString, Nullable: true, Size: 8},
	}
	sentencesTable = &schema.Table{
		Name:       SentencesTable,
		Columns:    sentencesColumns,
		PrimaryKey: []*schema.Column{sentencesColumns[0]},
	}

	usersColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "username", Type: field.TypeString, Unique: true, Size: 32},
		{Name: "created_at", Type: field.TypeTime},
	}
	usersTable = &schema.Table{
		Name:       UsersTable,
		Columns:    usersColumns,
		PrimaryKey: []*schema.Column{usersColumns[0]},
	}

	sentencesTranslationsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "sentence_id", Type: field.TypeInt64},
		{Name: "translation_id", Type: field.TypeInt64},
	}
	sentencesTranslationsTable = &schema.Table{
		Name:       SentencesTranslationTable,
		Columns:    sentencesTranslationsColumns,
		PrimaryKey: []*schema.Column{sentencesTranslationsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "sentences_translations_sentence",
				Columns:    []*schema.Column{sentencesTranslationsColumns[1]},
				RefColumns: []*schema.Column{sentencesColumns[0]},
				OnDelete:   schema.Cascade,
			},
			{
				Symbol:     "sentences_translations_translation",
				Columns:    []*schema.Column{sentencesTranslationsColumns[2]},
				RefColumns: []*schema.Column{sentencesColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "sentences_translations_pair",
				Unique:  true,
				Columns: []*schema.Column{sentencesTranslationsColumns[1], sentencesTranslationsColumns[2]},
			},
			{
				Name:    "sentences_translations_translation_id",
				Columns: []*schema.Column{sentencesTranslationsColumns[2]},
			},
		},
	}

	audiosColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "sentence_id", Type: field.TypeInt64, Unique: true},
		{Name: "user_id", Type: field.TypeInt64, Nullable: true},
		{Name: "author", Type: field.TypeString, Nullable: true, Size: 255},
		{Name: "licence_id", Type: field.TypeInt64, Default: 0},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	audiosTable = &schema.Table{
		Name:       AudiosTable,
		Columns:    audiosColumns,
		PrimaryKey: []*schema.Column{audiosColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "audios_sentence",
				Columns:    []*schema.Column{audiosColumns[1]},
				RefColumns: []*schema.Column{sentencesColumns[0]},
				OnDelete:   schema.Cascade,
			},
			{
				Symbol:     "audios_user",
				Columns:    []*schema.Column{audiosColumns[2]},
				RefColumns: []*schema.Column{usersColumns[0]},
				OnDelete:   schema.Restrict,
			},
		},
		Indexes: []*schema.Index{
			{Name: "audios_user_id", Columns: []*schema.Column{audiosColumns[2]}},
		},
	}

	reindexFlagsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "sentence_id", Type: field.TypeInt64, Unique: true},
		{Name: "created_at", Type: field.TypeTime},
	}
	reindexFlagsTable = &schema.Table{
		Name:       ReindexFlagsTable,
		Columns:    reindexFlagsColumns,
		PrimaryKey: []*schema.Column{reindexFlagsColumns[0]},
	}

	pendingReindexColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "sentence_id", Type: field.TypeInt64},
		{Name: "created_at", Type: field.TypeTime},
	}
	pendingReindexTable = &schema.Table{
		Name:       PendingReindexTable,
		Columns:    pendingReindexColumns,
		PrimaryKey: []*schema.Column{pendingReindexColumns[0]},
		Indexes: []*schema.Index{
			{Name: "pending_reindex_created_at", Columns: []*schema.Column{pendingReindexColumns[2]}},
		},
	}

	// Tables holds every table managed by Migrate, in dependency order.
	Tables = []*schema.Table{
		sentencesTable,
		usersTable,
		sentencesTranslationsTable,
		audiosTable,
		reindexFlagsTable,
		pendingReindexTable,
	}
)

func init() {
	sentencesTranslationsTable.ForeignKeys[0].RefTable = sentencesTable
	sentencesTranslationsTable.ForeignKeys[1].RefTable = sentencesTable
	audiosTable.ForeignKeys[0].RefTable = sentencesTable
	audiosTable.ForeignKeys[1].RefTable = usersTable
}
