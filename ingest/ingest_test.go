package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildPDF assembles a minimal single-font PDF with one page per entry.
func buildPDF(pages ...string) []byte {
	var objects []string
	kids := make([]string, len(pages))
	// 1 catalog, 2 pages, 3 font, then page/content pairs.
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	)
	for i, text := range pages {
		content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestPDFExtractor(t *testing.T) {
	data := buildPDF("Project Phoenix launches on March 5", "Budget review follows")

	ex := PDFExtractor{}
	require.True(t, ex.Supports("plan.bin", data), "header sniffing should detect PDF")

	pages, err := ex.Extract(data)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, 1, pages[0].Number)
	assert.Contains(t, pages[0].Text, "Phoenix")
	assert.Equal(t, 2, pages[1].Number)
}

func TestPDFExtractorMalformed(t *testing.T) {
	_, err := PDFExtractor{}.Extract([]byte("%PDF-1.4\nthis is not really a pdf"))
	assert.Error(t, err)
}

func TestTextExtractor(t *testing.T) {
	ex := TextExtractor{}
	assert.True(t, ex.Supports("notes.MD", nil))
	assert.False(t, ex.Supports("image.png", nil))

	pages, err := ex.Extract([]byte("line one\r\nline two\n"))
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "line one\nline two", pages[0].Text)

	_, err = ex.Extract([]byte{0xff, 0xfe, 0xfd})
	assert.Error(t, err)
}

func TestSplitterShortTextIsOneChunk(t *testing.T) {
	s := NewRecursiveSplitter(1000, 200)
	chunks := s.Split("Project Phoenix launches on March 5.")
	assert.Equal(t, []string{"Project Phoenix launches on March 5."}, chunks)
	assert.Empty(t, s.Split("   "))
}

func TestSplitterPrefersParagraphs(t *testing.T) {
	s := NewRecursiveSplitter(30, 0)
	text := "first paragraph here\n\nsecond paragraph here\n\nthird one"
	chunks := s.Split(text)
	assert.Equal(t, []string{"first paragraph here", "second paragraph here", "third one"}, chunks)
}

func TestSplitterRespectsSizeAndOverlap(t *testing.T) {
	var words []string
	for i := 0; i < 400; i++ {
		words = append(words, fmt.Sprintf("word%03d", i))
	}
	text := strings.Join(words, " ")

	s := NewRecursiveSplitter(100, 20)
	chunks := s.Split(text)
	require.Greater(t, len(chunks), 1)

	for i, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 100, "chunk %d too long", i)
	}
	// Adjacent chunks share the overlap tail.
	for i := 1; i < len(chunks); i++ {
		prev := strings.Fields(chunks[i-1])
		next := strings.Fields(chunks[i])
		assert.Equal(t, prev[len(prev)-1], next[1], "chunk %d should start with the tail of chunk %d", i, i-1)
	}
	// Nothing is lost.
	joined := strings.Join(chunks, " ")
	for _, w := range words {
		assert.Contains(t, joined, w)
	}
}

func TestSplitterFallsBackToCharacters(t *testing.T) {
	s := NewRecursiveSplitter(10, 0)
	chunks := s.Split(strings.Repeat("é", 25))
	require.Len(t, chunks, 3)
	assert.Equal(t, 10, utf8.RuneCountInString(chunks[0]))
	assert.Equal(t, 5, utf8.RuneCountInString(chunks[2]))
}

func TestNewRecursiveSplitterClampsOverlap(t *testing.T) {
	s := NewRecursiveSplitter(100, 500)
	assert.Less(t, s.ChunkOverlap, s.ChunkSize)

	d := NewRecursiveSplitter(0, -1)
	assert.Equal(t, DefaultChunkSize, d.ChunkSize)
	assert.Equal(t, 0, d.ChunkOverlap)
}

func TestPipelineIsolatesFailures(t *testing.T) {
	files := []File{
		{Name: "phoenix.pdf", Data: buildPDF("Project Phoenix launches on March 5")},
		{Name: "photo.png", Data: []byte{0x89, 'P', 'N', 'G'}},
		{Name: "notes.txt", Data: []byte("Team standup is at 9am.")},
		{Name: "empty.md", Data: []byte("   \n")},
	}

	result := NewPipeline(WithConcurrency(2)).Ingest(context.Background(), files)

	assert.Equal(t, 4, result.Files)
	assert.Equal(t, 2, result.Succeeded())
	require.Len(t, result.Failures, 2)
	assert.Equal(t, "photo.png", result.Failures[0].Name)
	assert.True(t, errors.Is(result.Failures[0].Err, ErrUnsupported))
	assert.Equal(t, "empty.md", result.Failures[1].Name)
	assert.True(t, errors.Is(result.Failures[1].Err, ErrNoText))

	require.Len(t, result.Chunks, 2)
	assert.Equal(t, "phoenix.pdf", result.Chunks[0].Source)
	assert.Equal(t, 1, result.Chunks[0].Page)
	assert.Equal(t, "phoenix.pdf p.1", result.Chunks[0].Label())
	assert.Equal(t, "notes.txt", result.Chunks[1].Source)
	assert.Equal(t, "notes.txt", result.Chunks[1].Label())
	assert.Len(t, result.Chunks[1].Checksum, 64)
}

func TestPipelineAllFail(t *testing.T) {
	files := []File{{Name: "a.docx", Data: []byte("PK")}, {Name: "b.xlsx", Data: []byte("PK")}}
	result := NewPipeline().Ingest(context.Background(), files)
	assert.Empty(t, result.Chunks)
	assert.Len(t, result.Failures, 2)
	assert.Equal(t, 0, result.Succeeded())
}

func TestPipelineCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := NewPipeline().Ingest(ctx, []File{{Name: "a.txt", Data: []byte("x")}})
	require.Len(t, result.Failures, 1)
	assert.ErrorIs(t, result.Failures[0].Err, context.Canceled)
}

func TestReadFiles(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.txt")
	require.NoError(t, os.WriteFile(good, []byte("hello"), 0o644))

	files, failures := ReadFiles([]string{good, filepath.Join(dir, "missing.txt")})
	require.Len(t, files, 1)
	assert.Equal(t, good, files[0].Name)
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0].Name, "missing.txt")
}
