package repository

import "github.com/eslsoft/audiolink/pkg/filterexpr"

var listAudiosSchema = filterexpr.ResourceSchema{
	Filter: map[string]filterexpr.FilterField{
		"sentence_id": {
			Kind: filterexpr.KindInteger,
			Ops: map[filterexpr.Op]string{
				filterexpr.OpEQ: "SentenceID",
				filterexpr.OpIN: "SentenceIDs",
			},
		},
		"user_id": {
			Kind: filterexpr.KindInteger,
			Ops:  map[filterexpr.Op]string{filterexpr.OpEQ: "UserID"},
		},
		"author": {
			Kind: filterexpr.KindString,
			Ops: map[filterexpr.Op]string{
				filterexpr.OpEQ: "Author",
				filterexpr.OpSW: "AuthorPrefix",
			},
		},
		"lang": {
			Kind: filterexpr.KindString,
			Ops: map[filterexpr.Op]string{
				filterexpr.OpEQ: "Lang",
				filterexpr.OpIN: "Langs",
			},
		},
		"created_at": {
			Kind: filterexpr.KindTimestamp,
			Ops: map[filterexpr.Op]string{
				filterexpr.OpGTE: "CreatedFrom",
				filterexpr.OpLTE: "CreatedTo",
			},
		},
	},
	Order: filterexpr.OrderSchema{
		DefaultPrimary:     "created_at",
		DefaultPrimaryDesc: true,
		FallbackKey:        "id",
		FallbackDesc:       false,
		Fields: map[string]filterexpr.OrderField{
			"created_at":  {Expr: "created_at"},
			"updated_at":  {Expr: "updated_at"},
			"sentence_id": {Expr: "sentence_id"},
			"id":          {Expr: "id"},
		},
	},
}
