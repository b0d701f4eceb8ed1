package parser

import (
	"bytes"
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEinoPDFTextExtractor(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	extractor, err := NewEinoPDFTextExtractor(ctx)
	require.NoError(t, err)
	require.NotNil(t, extractor.parser)
	assert.Equal(t, 30*time.Second, extractor.timeout)

	var buf bytes.Buffer
	custom, err := NewEinoPDFTextExtractor(ctx,
		WithEinoLogger(log.New(&buf, "", 0)),
		WithEinoTimeout(2*time.Second),
		WithEinoTimeout(0), // 非正值忽略
	)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, custom.timeout)
}

func TestEinoPDFTextExtractor_InvalidData(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	extractor, err := NewEinoPDFTextExtractor(ctx, WithEinoLogger(log.New(&buf, "", 0)))
	require.NoError(t, err)

	_, meta, err := extractor.ExtractTextFromBytes(ctx, []byte("definitely not a pdf"), "bad.pdf", map[string]interface{}{"source": "test"})
	assert.Error(t, err)
	assert.Equal(t, "test", meta["source"])
	assert.Contains(t, buf.String(), "bad.pdf")
}

// 依赖本地样本文件，没有时跳过
func TestEinoPDFTextExtractor_SampleFile(t *testing.T) {
	matches, _ := filepath.Glob(filepath.Join("testdata", "*.pdf"))
	if len(matches) == 0 {
		t.Skip("testdata 下没有 PDF 样本")
	}
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)

	extractor, err := NewEinoPDFTextExtractor(context.Background())
	require.NoError(t, err)
	text, meta, err := extractor.ExtractTextFromBytes(context.Background(), data, matches[0], nil)
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(text))
	assert.Equal(t, "eino", meta["extractor"])
	assert.Equal(t, len(text), meta["text_length"])
}
