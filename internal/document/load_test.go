package document

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/notegrid/internal/node"
)

func writeDoc(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("full node configuration", func(t *testing.T) {
		path := writeDoc(t, "main.hcl", `
document {
  maximum_retries = 3
}

chunk "setup" {
  code   = "x = 1"
  format = "calc"
  mode   = "always"
  bounds = "fork"

  tag "instance" {
    value = "gpu-1"
  }
}

expr "total" {
  code            = "x + 1"
  requires        = ["chunk.setup"]
  maximum_retries = 2
}
`)

		doc, err := Load(context.Background(), path)
		require.NoError(t, err)

		assert.Equal(t, 3, doc.Config.MaximumRetries)
		assert.False(t, doc.Config.Locked)
		require.Equal(t, 2, doc.Len())

		setup, ok := doc.Get("chunk.setup")
		require.True(t, ok)
		assert.Equal(t, node.KindChunk, setup.Kind)
		assert.Equal(t, "setup", setup.Name)
		assert.Equal(t, "x = 1", setup.Code)
		assert.Equal(t, node.ModeAlways, setup.Mode)
		assert.Equal(t, node.BoundsFork, setup.Bounds)
		require.Len(t, setup.Tags, 1)
		assert.Equal(t, "instance", setup.Tags[0].Name)
		assert.Equal(t, "gpu-1", setup.Tags[0].Value)
		assert.False(t, setup.Tags[0].Global)

		total, ok := doc.Get("expr.total")
		require.True(t, ok)
		assert.Equal(t, node.KindExpression, total.Kind)
		assert.Equal(t, []node.ID{"chunk.setup"}, total.Requires)
		assert.Equal(t, 2, total.MaximumRetries)
	})

	t.Run("replica configuration", func(t *testing.T) {
		path := writeDoc(t, "main.hcl", `
chunk "gen" {
  code           = "x = 1"
  replicates     = 3
  quality_weight = 70
  cost_weight    = 20
  speed_weight   = 10
  minimum_score  = 0.5
}
`)

		doc, err := Load(context.Background(), path)
		require.NoError(t, err)

		n, ok := doc.Get("chunk.gen")
		require.True(t, ok)
		assert.Equal(t, 3, n.Replicates)
		assert.Equal(t, 70, n.QualityWeight)
		assert.Equal(t, 20, n.CostWeight)
		assert.Equal(t, 10, n.SpeedWeight)
		assert.Equal(t, 0.5, n.MinimumScore)
	})

	t.Run("directory tree is merged into one document", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "one.hcl"),
			[]byte("chunk \"a\" {\n  code = \"x = 1\"\n}\n"), 0644))
		sub := filepath.Join(dir, "sub")
		require.NoError(t, os.Mkdir(sub, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(sub, "two.hcl"),
			[]byte("chunk \"b\" {\n  code = \"y = 2\"\n}\n"), 0644))

		doc, err := Load(context.Background(), dir)
		require.NoError(t, err)

		assert.Equal(t, 2, doc.Len())
	})

	t.Run("default retry bound is normalized", func(t *testing.T) {
		path := writeDoc(t, "main.hcl", "chunk \"a\" {\n  code = \"x = 1\"\n}\n")

		doc, err := Load(context.Background(), path)
		require.NoError(t, err)

		assert.Equal(t, 1, doc.Config.MaximumRetries)
	})

	t.Run("content executes unless opted out", func(t *testing.T) {
		path := writeDoc(t, "main.hcl", `
chunk "code" {
  code = "x = 1"
}

chunk "notes" {
  code            = "prose"
  execute_content = false
}
`)

		doc, err := Load(context.Background(), path)
		require.NoError(t, err)

		code, ok := doc.Get("chunk.code")
		require.True(t, ok)
		assert.True(t, code.ExecuteContent)

		notes, ok := doc.Get("chunk.notes")
		require.True(t, ok)
		assert.False(t, notes.ExecuteContent)
	})

	t.Run("invalid mode is rejected", func(t *testing.T) {
		path := writeDoc(t, "main.hcl", `
chunk "a" {
  code = "x = 1"
  mode = "sometimes"
}
`)

		_, err := Load(context.Background(), path)
		assert.ErrorContains(t, err, "invalid mode")
	})

	t.Run("duplicate node id across files is rejected", func(t *testing.T) {
		dir := t.TempDir()
		content := []byte("chunk \"a\" {\n  code = \"x = 1\"\n}\n")
		require.NoError(t, os.WriteFile(filepath.Join(dir, "one.hcl"), content, 0644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "two.hcl"), content, 0644))

		_, err := Load(context.Background(), dir)
		assert.ErrorContains(t, err, "duplicate")
	})

	t.Run("unparseable file is rejected", func(t *testing.T) {
		path := writeDoc(t, "main.hcl", "chunk \"a\" {")

		_, err := Load(context.Background(), path)
		assert.ErrorContains(t, err, "failed to parse")
	})

	t.Run("missing path is an error", func(t *testing.T) {
		_, err := Load(context.Background(), "/does/not/exist")
		assert.ErrorContains(t, err, "failed to stat")
	})
}
