package document

import (
	"archive/zip"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/jbuican14/parentPal-06-16/pkg/config"
)

const documentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>Field trip to the museum</w:t></w:r></w:p>
<w:p><w:r><w:t xml:space="preserve">on </w:t></w:r><w:r><w:t>Friday at 9am</w:t></w:r></w:p>
<w:p></w:p>
</w:body>
</w:document>`

const relsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`

func buildDocx(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range map[string]string{
		"word/document.xml":            documentXML,
		"word/_rels/document.xml.rels": relsXML,
	} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func buildXlsx(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "Event"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "Date"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "Book fair"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", "Nov 3"))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestParse_Text(t *testing.T) {
	doc, err := Parse(context.Background(), "notes.TXT", []byte("\uFEFFSoccer practice\r\nTuesday at 4pm\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "notes.TXT", doc.Name)
	assert.Equal(t, "text", doc.Format)
	assert.Equal(t, "Soccer practice\nTuesday at 4pm", doc.Content)
	assert.Equal(t, "5", doc.Metadata["word_count"])
}

func TestParse_HTML(t *testing.T) {
	page := `<html><head><title>Newsletter</title><style>p{color:red}</style></head>
<body><h1>Weekly News</h1><p>Picture day is   next Monday.</p><script>var x = 1;</script>
<ul><li>Book fair</li><li>PTA meeting</li></ul></body></html>`

	doc, err := NewRegistry().Parse(context.Background(), "news.html", []byte(page))
	require.NoError(t, err)
	assert.Equal(t, "html", doc.Format)
	assert.Equal(t, "Weekly News\nPicture day is next Monday.\nBook fair\nPTA meeting", doc.Content)
	assert.Equal(t, "Newsletter", doc.Metadata["title"])
	assert.NotContains(t, doc.Content, "var x")
}

func TestParse_Docx(t *testing.T) {
	doc, err := NewRegistry().Parse(context.Background(), "/tmp/uploads/letter.docx", buildDocx(t))
	require.NoError(t, err)
	assert.Equal(t, "letter.docx", doc.Name)
	assert.Equal(t, "docx", doc.Format)
	assert.Equal(t, "Field trip to the museum\non Friday at 9am", doc.Content)
	assert.Equal(t, "2", doc.Metadata["paragraphs"])
}

func TestParse_Xlsx(t *testing.T) {
	doc, err := NewRegistry().Parse(context.Background(), "schedule.xlsx", buildXlsx(t))
	require.NoError(t, err)
	assert.Equal(t, "xlsx", doc.Format)
	assert.Equal(t, "Sheet1\nEvent | Date\nBook fair | Nov 3", doc.Content)
	assert.Equal(t, "1", doc.Metadata["sheets"])
}

func TestParse_MalformedPDF(t *testing.T) {
	_, err := NewRegistry().Parse(context.Background(), "flyer.pdf", []byte("definitely not a pdf"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flyer.pdf")
}

func TestParse_Unsupported(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"photo.png", "archive.zip", "noextension"} {
		_, err := r.Parse(context.Background(), name, []byte("x"))
		assert.ErrorIs(t, err, ErrUnsupportedFormat, name)
		assert.False(t, r.Supports(name))
	}
}

func TestParse_TooLarge(t *testing.T) {
	r := NewFromConfig(&config.DocumentConfig{MaxSize: 8})
	_, err := r.Parse(context.Background(), "a.txt", []byte("123456789"))
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = r.Parse(context.Background(), "a.txt", []byte("12345678"))
	assert.NoError(t, err)

	unlimited := NewRegistry(WithMaxSize(0))
	_, err = unlimited.Parse(context.Background(), "a.txt", []byte(strings.Repeat("x", 1<<10)))
	assert.NoError(t, err)
}

func TestParse_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewRegistry().Parse(ctx, "a.txt", []byte("hello"))
	assert.ErrorIs(t, err, context.Canceled)
}

type upperParser struct{}

func (upperParser) Extensions() []string { return []string{".TXT"} }

func (upperParser) Parse(_ context.Context, data []byte) (*Document, error) {
	return &Document{Format: "upper", Content: strings.ToUpper(string(data))}, nil
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{".csv", ".docx", ".eml", ".htm", ".html", ".ics", ".md", ".pdf", ".txt", ".xlsx"},
		r.SupportedExtensions())

	r.Register(upperParser{})
	doc, err := r.Parse(context.Background(), "a.txt", []byte("rsvp"))
	require.NoError(t, err)
	assert.Equal(t, "RSVP", doc.Content)
	assert.Equal(t, "upper", doc.Format)
}
