package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/poiesic/phrasebook"
	"github.com/poiesic/phrasebook/ai/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cliFixture struct {
	dir  string
	db   string
	opts []phrasebook.DatabaseOption
}

func newCLIFixture(t *testing.T) *cliFixture {
	t.Helper()
	dir := t.TempDir()
	return &cliFixture{dir: dir, db: filepath.Join(dir, "db")}
}

// withEmbedder makes embedding commands use a deterministic mock embedder.
func (f *cliFixture) withEmbedder() *cliFixture {
	f.opts = []phrasebook.DatabaseOption{phrasebook.WithAIProvider(mock.NewMockProviderWithEmbedder(mock.NewMockEmbedderWithDimension(8)))}
	return f
}

func (f *cliFixture) file(t *testing.T, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(f.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func (f *cliFixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := newApp(&environment{stdout: &stdout, stderr: &stderr, dbOptions: f.opts})
	err := app.Run(append([]string{"phrasebook", "--db", f.db}, args...))
	return stdout.String(), err
}

func (f *cliFixture) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := f.run(t, args...)
	require.NoError(t, err)
	return out
}

func (f *cliFixture) ingestGreetings(t *testing.T, extra ...string) string {
	t.Helper()
	args := []string{"ingest", "--index", "greetings", "--from", "en", "--to", "fr",
		"--source-file", f.file(t, "en.txt", "hello", "good morning", "hello hello hello", "thank you"),
		"--target-file", f.file(t, "fr.txt", "bonjour", "bonjour le matin", "salut salut salut", "merci"),
	}
	return f.mustRun(t, append(args, extra...)...)
}

func TestSetupLogger(t *testing.T) {
	f := newCLIFixture(t)
	_, err := f.run(t, "--log-level", "verbose", "indexes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestIngestAndTranslate(t *testing.T) {
	f := newCLIFixture(t)
	out := f.ingestGreetings(t)
	assert.Contains(t, out, "Indexed 4 pairs into greetings (en-fr, embedded: none)")

	out = f.mustRun(t, "translate", "--index", "greetings", "--from", "en", "--to", "fr", "Hello")
	assert.Contains(t, out, "Keyword matches:")
	assert.Contains(t, out, "1.  "+exactMarker+" bonjour\n")
	assert.Contains(t, out, "(hello)")
	assert.Contains(t, out, "Similar phrases:")
	assert.Contains(t, out, "en phrases of greetings have no vectors")

	// Reverse direction over the same index.
	out = f.mustRun(t, "translate", "--index", "greetings", "--from", "fr", "--to", "en", "merci")
	assert.Contains(t, out, exactMarker+" thank you")
}

func TestTranslate_NoMatch(t *testing.T) {
	f := newCLIFixture(t)
	f.ingestGreetings(t)

	out := f.mustRun(t, "translate", "-i", "greetings", "-f", "en", "-t", "fr", "zebra", "crossing")
	assert.Equal(t, noMatch+"\n", out)
}

func TestTranslate_Errors(t *testing.T) {
	f := newCLIFixture(t)
	f.ingestGreetings(t)

	_, err := f.run(t, "translate", "--index", "greetings", "--from", "en", "--to", "fr")
	assert.ErrorContains(t, err, "phrase to translate is required")

	_, err = f.run(t, "translate", "--index", "greetings", "--from", "en", "--to", "de", "hello")
	assert.ErrorContains(t, err, "unsupported")

	_, err = f.run(t, "translate", "--index", "missing", "--from", "en", "--to", "fr", "hello")
	assert.ErrorContains(t, err, "index not found")

	_, err = f.run(t, "translate", "--from", "en", "--to", "fr", "hello")
	assert.ErrorContains(t, err, "index")
}

func TestIngest_LineCountMismatch(t *testing.T) {
	f := newCLIFixture(t)
	_, err := f.run(t, "ingest", "--index", "broken", "--from", "en", "--to", "fr",
		"--source-file", f.file(t, "a.txt", "one", "two", "three", "four", "five"),
		"--target-file", f.file(t, "b.txt", "un", "deux", "trois", "quatre"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source has 5 lines, target has 4")

	out := f.mustRun(t, "indexes")
	assert.Equal(t, "no indexes\n", out)
}

func TestUserPairs(t *testing.T) {
	f := newCLIFixture(t)
	f.ingestGreetings(t)

	out := f.mustRun(t, "add", "--from", "en", "--to", "fr", "hello", "coucou")
	assert.Contains(t, out, "Added user pair")

	out = f.mustRun(t, "translate", "--index", "greetings", "--from", "en", "--to", "fr", "hello")
	lines := strings.Split(out, "\n")
	require.Greater(t, len(lines), 3)
	assert.Contains(t, lines[1], userMarker)
	assert.Contains(t, lines[1], "coucou")
	assert.Contains(t, out, exactMarker+" bonjour")

	out = f.mustRun(t, "user", "list", "--from", "fr", "--to", "en")
	assert.Contains(t, out, "fr-en")
	assert.Contains(t, out, "coucou")

	srcOut, tgtOut := filepath.Join(f.dir, "user.en"), filepath.Join(f.dir, "user.fr")
	out = f.mustRun(t, "user", "export", "--from", "en", "--to", "fr", "--source-out", srcOut, "--target-out", tgtOut)
	assert.Contains(t, out, "Exported 1 user pairs")
	data, err := os.ReadFile(tgtOut)
	require.NoError(t, err)
	assert.Equal(t, "coucou\n", string(data))

	fields := strings.Fields(strings.Split(f.mustRun(t, "user", "list"), "\n")[1])
	require.NotEmpty(t, fields)
	out = f.mustRun(t, "user", "delete", fields[0])
	assert.Contains(t, out, "Deleted user pair "+fields[0])
	assert.Equal(t, "no user pairs\n", f.mustRun(t, "user", "list"))

	_, err = f.run(t, "user", "delete", fields[0])
	assert.ErrorContains(t, err, "not found")
	_, err = f.run(t, "user", "delete", "not-a-number")
	assert.ErrorContains(t, err, "invalid user pair ID")
}

func TestIndexesAndDrop(t *testing.T) {
	f := newCLIFixture(t)
	f.ingestGreetings(t)

	out := f.mustRun(t, "indexes")
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "greetings")
	assert.Contains(t, out, "en-fr")

	assert.Contains(t, f.mustRun(t, "drop", "greetings"), "Dropped index greetings")
	assert.Equal(t, "no indexes\n", f.mustRun(t, "indexes"))

	_, err := f.run(t, "drop", "greetings")
	assert.ErrorContains(t, err, "index not found")
}

func TestSemanticSearchAndReembed(t *testing.T) {
	f := newCLIFixture(t).withEmbedder()
	out := f.ingestGreetings(t)
	assert.Contains(t, out, "embedded: source with "+mock.DefaultModelID+"@8")

	out = f.mustRun(t, "translate", "--index", "greetings", "--from", "en", "--to", "fr", "--results", "2", "thank you")
	assert.Contains(t, out, "Similar phrases:")
	assert.Contains(t, out, "score ")
	assert.NotContains(t, out, "have no vectors")

	out = f.mustRun(t, "reembed", "--index", "greetings", "--embed", "target")
	assert.Contains(t, out, "Rebuilt greetings (4 pairs, embedded: target with "+mock.DefaultModelID+"@8)")

	out = f.mustRun(t, "translate", "--index", "greetings", "--from", "en", "--to", "fr", "thank you")
	assert.Contains(t, out, "en phrases of greetings have no vectors")

	out = f.mustRun(t, "reembed", "--index", "greetings", "--embed", "none")
	assert.Contains(t, out, "embedded: none")
}

func TestReembed_FlagValidation(t *testing.T) {
	f := newCLIFixture(t)
	_, err := f.run(t, "reembed", "--index", "greetings", "--batch-size", "0")
	assert.ErrorContains(t, err, "batch-size")

	_, err = f.run(t, "reembed", "--index", "greetings", "--embed", "middle")
	assert.ErrorContains(t, err, "invalid column")
}

func TestConfigFile(t *testing.T) {
	f := newCLIFixture(t)
	cfgPath := f.file(t, "phrasebook.yaml", "store:", "  path: "+filepath.Join(f.dir, "configured"), "search:", "  short_list_size: 1")

	var stdout bytes.Buffer
	app := newApp(&environment{stdout: &stdout, stderr: &bytes.Buffer{}})
	require.NoError(t, app.Run([]string{"phrasebook", "--config", cfgPath, "indexes"}))
	assert.Equal(t, "no indexes\n", stdout.String())
	assert.DirExists(t, filepath.Join(f.dir, "configured"))

	_, err := f.run(t, "--config", filepath.Join(f.dir, "missing.yaml"), "indexes")
	assert.Error(t, err)
}
