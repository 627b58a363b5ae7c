package loader_test

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/hybridrag/internal/models"
	"github.com/xhad/hybridrag/pkg/loader"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeDOCX(t *testing.T, dir, name, documentXML string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	part, err := w.Create("word/document.xml")
	require.NoError(t, err)
	_, err = part.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return path
}

func TestRegistry_Resolve(t *testing.T) {
	r := loader.NewRegistry()

	tests := []struct {
		path string
		want models.MediaType
	}{
		{"report.pdf", models.MediaPDF},
		{"REPORT.PDF", models.MediaPDF},
		{"notes.docx", models.MediaDOCX},
		{"readme.txt", models.MediaPlainText},
		{"guide.md", models.MediaPlainText},
		{"page.html", models.MediaHTML},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			mt, l, err := r.Resolve(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, mt)
			assert.NotNil(t, l)
		})
	}

	_, _, err := r.Resolve("slides.pptx")
	assert.ErrorIs(t, err, loader.ErrUnsupported)
	assert.False(t, r.Supported("archive.zip"))
}

func TestRegistry_LoadText(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "\ufeffHello\nworld")

	doc, err := loader.NewRegistry().Load(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, "a.txt", doc.ID)
	assert.Equal(t, models.MediaPlainText, doc.MediaType)
	assert.Equal(t, "Hello\nworld", doc.Content)
}

func TestRegistry_LoadEmpty(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "empty.txt", "  \n\t ")

	_, err := loader.NewRegistry().Load(context.Background(), path)

	assert.ErrorIs(t, err, loader.ErrEmptyDocument)
}

func TestDOCXLoader(t *testing.T) {
	dir := t.TempDir()
	path := writeDOCX(t, dir, "memo.docx", `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Chapter 1</w:t></w:r></w:p>
    <w:p><w:r><w:t>Hello </w:t></w:r><w:r><w:t>world</w:t></w:r></w:p>
  </w:body>
</w:document>`)

	text, err := loader.DOCXLoader{}.Load(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, "Chapter 1\nHello world", text)
}

func TestDOCXLoader_NotAZip(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "broken.docx", "plain text")

	_, err := loader.DOCXLoader{}.Load(context.Background(), path)

	assert.Error(t, err)
}

func TestHTMLLoader(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "page.html", `<html><head><title>T</title><style>p{}</style></head>
<body>
  <nav>Home | About</nav>
  <main><h1>Install</h1>
    <p>Run   the installer.</p>
    <script>var x = 1;</script>
  </main>
  <footer>Privacy Policy</footer>
</body></html>`)

	text, err := loader.HTMLLoader{}.Load(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, "Install Run the installer.", text)
}

func TestHTMLLoader_BodyFallback(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "plain.htm", `<html><body><div>Just a div. Accept Cookies</div></body></html>`)

	text, err := loader.HTMLLoader{}.Load(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, "Just a div.", text)
}

func TestLoad_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := loader.TextLoader{}.Load(ctx, "whatever.txt")

	assert.ErrorIs(t, err, context.Canceled)
}
