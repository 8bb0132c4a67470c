package store

import "testing"

func TestQueryBuilderEqAndLimit(t *testing.T) {
	sql, params := NewQueryBuilder().
		Eq("conversation_id", "c1").
		Build("SELECT * FROM messages", "created_at ASC", 100)

	want := "SELECT * FROM messages WHERE conversation_id = $1 ORDER BY created_at ASC LIMIT $2"
	if sql != want {
		t.Fatalf("sql = %q", sql)
	}
	if len(params) != 2 || params[0] != "c1" || params[1] != 100 {
		t.Fatalf("params = %v", params)
	}
}

func TestQueryBuilderSkipsEmptyEq(t *testing.T) {
	sql, params := NewQueryBuilder().
		Eq("conversation_id", "").
		Build("SELECT * FROM messages", "", 50)

	if sql != "SELECT * FROM messages LIMIT $1" {
		t.Fatalf("sql = %q", sql)
	}
	if len(params) != 1 {
		t.Fatalf("params = %v", params)
	}
}

func TestQueryBuilderKeywordLike(t *testing.T) {
	sql, params := NewQueryBuilder().
		KeywordLike("50%", "title").
		Build("SELECT * FROM conversations", "updated_at DESC", 20)

	if params[0] != `%50\%%` {
		t.Fatalf("LIKE pattern not escaped: %v", params[0])
	}
	wantSQL := `SELECT * FROM conversations WHERE (LOWER(title) LIKE $1 ESCAPE E'\\') ORDER BY updated_at DESC LIMIT $2`
	if sql != wantSQL {
		t.Fatalf("sql = %q", sql)
	}
}

func TestQueryBuilderClampsLimit(t *testing.T) {
	_, params := NewQueryBuilder().Build("SELECT 1", "", -5)
	if params[len(params)-1] != 1 {
		t.Fatalf("negative limit not clamped: %v", params)
	}
}
