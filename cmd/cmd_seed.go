package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/cockroachdb/apd/v2"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/qbloq/mongobridge/core"
)

var (
	seedRows  int
	seedValue int64
)

// seedCmd creates the seed command
func seedCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "seed [entity]...",
		Short: "Insert generated rows for entities",
		Long: `Insert fake rows for each named entity, or for every entity when none is
named. Values are generated from the declared attribute types. Aggregate
embeddables are left null.`,
		Run: cmdSeed,
	}
	c.Flags().IntVarP(&seedRows, "rows", "n", 10, "rows to insert per entity")
	c.Flags().Int64Var(&seedValue, "seed", 0, "random seed, 0 picks one from the clock")
	return c
}

func cmdSeed(cmd *cobra.Command, names []string) {
	setup(cpath)
	initDB()
	defer closeDB()

	e := svc.Engine()
	if len(names) == 0 {
		names = e.Entities()
	}

	s := seedValue
	if s == 0 {
		s = time.Now().UnixNano()
	}
	g := newSeeder(s)

	for _, name := range names {
		ent, ok := e.Entity(name)
		if !ok {
			log.Fatalf("unknown entity: %s", name)
		}
		n, err := g.seed(cmd.Context(), svc.DB(), ent, seedRows)
		if err != nil {
			log.Fatalf("seed %s: %s", ent.Name, err)
		}
		log.Infof("%s: %d row(s) inserted", ent.Name, n)
	}
}

type seeder struct {
	fake *gofakeit.Faker
	next map[string]int64
}

func newSeeder(seed int64) *seeder {
	return &seeder{fake: gofakeit.New(seed), next: make(map[string]int64)}
}

// insertText builds the parameterized insert for every column of ent
func insertText(ent *core.Entity) (string, error) {
	cols := ent.Columns()
	names := make([]string, len(cols))
	params := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
		params[i] = fmt.Sprintf("$%d", i+1)
	}
	b, err := json.Marshal(map[string]any{
		"type":    "insert",
		"table":   ent.Name,
		"columns": names,
		"values":  params,
	})
	return string(b), err
}

func (s *seeder) seed(ctx context.Context, db *sql.DB, ent *core.Entity, rows int) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	text, err := insertText(ent)
	if err != nil {
		return 0, err
	}

	stmt, err := db.PrepareContext(ctx, text)
	if err != nil {
		return 0, err
	}
	defer stmt.Close() //nolint:errcheck

	var total int64
	for i := 0; i < rows; i++ {
		res, err := stmt.ExecContext(ctx, s.row(ent)...)
		if err != nil {
			return total, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// row generates one value per column, in column order
func (s *seeder) row(ent *core.Entity) []any {
	cols := ent.Columns()
	vals := make([]any, len(cols))
	for i, c := range cols {
		if c.ID {
			vals[i] = s.id(ent.Name, c)
			continue
		}
		vals[i] = s.value(c)
	}
	return vals
}

func (s *seeder) id(entity string, c *core.Column) any {
	switch c.Type.Base.String() {
	case "int", "long", "short":
		s.next[entity]++
		if c.Type.Base.String() == "int" {
			return int32(s.next[entity])
		}
		return s.next[entity]
	case "String":
		return uuid.NewString()
	}
	return s.value(c)
}

func (s *seeder) value(c *core.Column) any {
	t := c.Type
	if c.Embeddable != nil {
		return nil
	}

	switch t.Shape.String() {
	case "basic":
		return s.scalar(t.Base.String())

	case "array", "collection":
		switch {
		case t.IsBinary():
			return []byte(s.fake.LetterN(8))
		case t.IsText():
			return []rune(s.fake.Word())
		case t.Elem.Shape.String() != "basic" || t.Elem.Base.String() == "byte":
			return nil
		}
		n := s.fake.Number(0, 3)
		elems := make([]any, n)
		for i := range elems {
			elems[i] = s.scalar(t.Elem.Base.String())
		}
		return elems
	}
	return nil
}

// scalar returns a value for a base type name, nil for types without
// a document mapping
func (s *seeder) scalar(base string) any {
	f := s.fake
	switch base {
	case "boolean":
		return f.Bool()
	case "char":
		return []rune(f.Letter())[0]
	case "byte":
		return f.Int8()
	case "short":
		return f.Int16()
	case "int":
		return int32(f.Number(0, 100000))
	case "long":
		return int64(f.Number(0, 1000000))
	case "double":
		return f.Float64Range(0, 1000)
	case "BigDecimal":
		return apd.New(int64(f.Number(0, 1000000)), -2)
	case "String":
		return f.Word()
	case "Instant":
		return f.Date().UTC().Truncate(time.Millisecond)
	}
	return nil
}
