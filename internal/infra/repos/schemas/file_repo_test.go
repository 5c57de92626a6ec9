package schemas

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mmrzaf/bondgen/internal/domain"
)

const blogYAML = `name: blog
entities:
  - name: users
    fields:
      - name: mail
        generator:
          type: faker_email
    unique:
      - [mail]
  - name: posts
    table: blog_posts
    fields:
      - name: author
        generator:
          type: const
          params:
            value: x
      - name: likes
        type: int
        generator:
          type: int
          params:
            min: 0
            max: 10
          nullable: true
    bonds:
      author:
        entity: users
        field: mail
    rule:
      op: gte
      field: likes
      value: 0
`

func write(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestGetByPath_ParsesYAML(t *testing.T) {
	base := t.TempDir()
	write(t, base, "blog.yaml", blogYAML)

	s, err := NewFileRepository(base).GetByPath("blog.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if s.ID != "blog" || s.Name != "blog" || len(s.Entities) != 2 {
		t.Fatalf("unexpected schema: %+v", s)
	}
	posts := s.Entities[1]
	if posts.TableName() != "blog_posts" {
		t.Fatalf("unexpected table: %s", posts.TableName())
	}
	if posts.Bonds["author"] != (domain.BondSpec{Entity: "users", Field: "mail"}) {
		t.Fatalf("unexpected bond: %+v", posts.Bonds["author"])
	}
	likes := posts.Fields[1]
	if likes.Type != domain.ColumnTypeInt || !likes.Generator.Nullable || likes.Generator.Params["max"] != 10 {
		t.Fatalf("unexpected field: %+v", likes)
	}
	if posts.RecordRule == nil || posts.RecordRule.Op != "gte" {
		t.Fatalf("unexpected record rule: %+v", posts.RecordRule)
	}
	if len(s.Entities[0].Unique) != 1 || s.Entities[0].Unique[0][0] != "mail" {
		t.Fatalf("unexpected unique groups: %+v", s.Entities[0].Unique)
	}
}

func TestGetByPath_ParsesJSON(t *testing.T) {
	base := t.TempDir()
	write(t, base, "mini.json", `{"id":"m1","name":"mini","entities":[{"name":"a","fields":[{"name":"n","generator":{"type":"int","params":{"min":1,"max":2}}}]}]}`)

	s, err := NewFileRepository(base).GetByPath("mini.json")
	if err != nil {
		t.Fatal(err)
	}
	if s.ID != "m1" || s.Entities[0].Fields[0].Generator.Params["max"] != float64(2) {
		t.Fatalf("unexpected schema: %+v", s)
	}
}

func TestGetByPath_RejectsUnknownKeys(t *testing.T) {
	base := t.TempDir()
	write(t, base, "typo.yaml", "name: x\nentites: []\n")
	if _, err := NewFileRepository(base).GetByPath("typo.yaml"); err == nil {
		t.Fatal("expected unknown key error")
	}
}

func TestGetByPath_RejectsPathTraversal(t *testing.T) {
	base := t.TempDir()
	repo := NewFileRepository(base)

	write(t, base, "ok.yaml", blogYAML)
	if _, err := repo.GetByPath("ok.yaml"); err != nil {
		t.Fatalf("expected schema load inside base dir, got %v", err)
	}
	if _, err := repo.GetByPath(filepath.Join(base, "ok.yaml")); err != nil {
		t.Fatalf("expected absolute path inside base dir to load, got %v", err)
	}

	outsideFile := filepath.Join(t.TempDir(), "outside.yaml")
	if err := os.WriteFile(outsideFile, []byte("name: bad"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.GetByPath(outsideFile); err == nil {
		t.Fatal("expected traversal rejection for outside absolute path")
	}
	if _, err := repo.GetByPath("../outside.yaml"); err == nil {
		t.Fatal("expected traversal rejection for relative path escape")
	}
}

func TestListAndGet(t *testing.T) {
	base := t.TempDir()
	write(t, base, "blog.yml", blogYAML)
	write(t, base, "broken.yaml", "name: [unterminated")
	write(t, base, "notes.txt", "ignored")

	repo := NewFileRepository(base)
	list, err := repo.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("expected one schema, got %d", len(list))
	}
	if _, err := repo.Get("blog"); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Get("nope"); err == nil {
		t.Fatal("expected not found")
	}

	missing, err := NewFileRepository(filepath.Join(base, "absent")).List()
	if err != nil || len(missing) != 0 {
		t.Fatalf("expected empty list for missing dir, got %v %v", missing, err)
	}
}
