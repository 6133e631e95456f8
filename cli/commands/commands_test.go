package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/sebdah/goldie/v2"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expreql/expreql/cli/internal/config"
	"github.com/expreql/expreql/internal/debug"
	"github.com/expreql/expreql/internal/testutil"
	"github.com/expreql/expreql/query"
	"github.com/expreql/expreql/query/ast"
	"github.com/expreql/expreql/query/mapper"
)

const fixture = "testdata/entities.yaml"

// run executes the command line with config files read from fs.
func run(t *testing.T, fs afero.Fs, args ...string) (string, error) {
	t.Helper()

	prevFs, prevColor := config.AppFs, color.NoColor
	config.AppFs = fs
	color.NoColor = true
	t.Cleanup(func() {
		config.AppFs = prevFs
		color.NoColor = prevColor
		debug.Init(false)
	})

	var out, errOut bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func golden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestBuildGolden(t *testing.T) {
	out, err := run(t, afero.NewMemMapFs(),
		"build", "Exercise", "--schema", fixture,
		"--join", "questions,fulfillments(responses)",
		"--where", "exercises.id > 3 AND (state = 'open' OR state = 'draft')",
		"--order", "title DESC",
		"--limit", "10",
		"--offset", "20",
	)
	require.NoError(t, err)
	golden(t).Assert(t, "build_nested", []byte(out))
}

func TestExplainGolden(t *testing.T) {
	out, err := run(t, afero.NewMemMapFs(),
		"explain", "Author", "--schema", fixture, "--join", "biographies,books", "--raw")
	require.NoError(t, err)
	golden(t).Assert(t, "explain_author", []byte(out))
}

func TestBuildErrors(t *testing.T) {
	fs := afero.NewMemMapFs()

	_, err := run(t, fs, "build", "Nope", "--schema", fixture)
	assert.ErrorIs(t, err, query.ErrUnknownEntity)

	_, err = run(t, fs, "build", "Exercise", "--schema", fixture, "--where", "state ~ 1")
	assert.ErrorIs(t, err, query.ErrInvalidPredicateShape)

	_, err = run(t, fs, "build", "Exercise", "--schema", fixture, "--join", "books")
	assert.ErrorIs(t, err, query.ErrUnresolvedAssociation)

	_, err = run(t, fs, "build", "Exercise", "--schema", fixture, "--order", "title SIDEWAYS")
	assert.ErrorIs(t, err, query.ErrUnsupportedOrderDirection)

	_, err = run(t, fs, "build", "Exercise", "--schema", "testdata/missing.yaml")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSchemaValidate(t *testing.T) {
	fs := afero.NewMemMapFs()

	out, err := run(t, fs, "schema", "validate", fixture)
	require.NoError(t, err)
	assert.Contains(t, out, fixture+" is valid: 7 entities")
	assert.Contains(t, out, "has_many Question (exercises_id)")

	broken := filepath.Join(t.TempDir(), "entities.yaml")
	require.NoError(t, os.WriteFile(broken, []byte(`
entities:
  - name: Book
    table: books
    primary_key: id
    fields: [id, title]
    belongs_to:
      Author: authors_id
`), 0o644))
	_, err = run(t, fs, "schema", "validate", broken)
	assert.ErrorIs(t, err, query.ErrUnknownEntity)

	_, err = run(t, fs, "schema", "validate", fixture, broken)
	assert.ErrorIs(t, err, query.ErrUnknownEntity)
	assert.Contains(t, err.Error(), broken)

	_, err = run(t, fs, "schema", "validate", "--watch", fixture, fixture)
	assert.Error(t, err)
}

func TestSchemaShow(t *testing.T) {
	out, err := run(t, afero.NewMemMapFs(), "schema", "show", "--schema", fixture)
	require.NoError(t, err)
	assert.Contains(t, out, "name: Exercise")
	assert.Contains(t, out, "version: \"1.1\"")
}

func TestInitWithoutPrompts(t *testing.T) {
	fs := afero.NewMemMapFs()
	t.Setenv("EXPREQL_DATABASE", "shop")
	t.Setenv("EXPREQL_PASSWORD", "s3cret")

	out, err := run(t, fs, "init", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote .expreql.yaml")
	assert.Contains(t, out, "Stored the password in .env")
	assert.Contains(t, out, "Created sample entity file entities.yaml")

	cfg, err := afero.ReadFile(fs, ".expreql.yaml")
	require.NoError(t, err)
	assert.Contains(t, string(cfg), "database: shop")
	assert.NotContains(t, string(cfg), "s3cret")

	env, err := afero.ReadFile(fs, ".env")
	require.NoError(t, err)
	assert.Contains(t, string(env), `EXPREQL_PASSWORD="s3cret"`)

	entities, err := afero.ReadFile(fs, "entities.yaml")
	require.NoError(t, err)
	assert.Equal(t, sampleEntities, string(entities))

	// a second run keeps the entity file
	require.NoError(t, afero.WriteFile(fs, "entities.yaml", []byte("entities: []\n"), 0o644))
	out, err = run(t, fs, "init", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Keeping existing entity file entities.yaml")
	entities, err = afero.ReadFile(fs, "entities.yaml")
	require.NoError(t, err)
	assert.Equal(t, "entities: []\n", string(entities))
}

func TestVersion(t *testing.T) {
	out, err := run(t, afero.NewMemMapFs(), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "expreql version 0.1.0")

	out, err = run(t, afero.NewMemMapFs(), "version", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"entity_format": "1.1"`)
}

func TestPrintEntities(t *testing.T) {
	fx := testutil.NewEntities()
	columns := []string{"id", "name", "id", "title", "isbn", "authors_id"}
	var rows []mapper.Row
	for _, vals := range [][]any{
		{int64(7), "Frank", int64(1), "Dune", "978-0", int64(7)},
		{int64(7), "Frank", int64(2), "Messiah", nil, int64(7)},
		{int64(8), "Ursula", nil, nil, nil, nil},
	} {
		r, err := mapper.RowFromColumns(columns, vals)
		require.NoError(t, err)
		rows = append(rows, r)
	}
	res, err := mapper.NewHydrator(fx.Author, ast.JoinTree{ast.Leaf(fx.Book)}).Hydrate(rows)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, printEntities(&buf, fx.Author, res.Entities))
	out := buf.String()
	assert.Contains(t, out, "books")
	assert.Contains(t, out, "Frank")
	assert.Contains(t, out, "Ursula")

	buf.Reset()
	require.NoError(t, printEntities(&buf, fx.Author, nil))
	assert.Equal(t, "no authors found\n", buf.String())
}
