package s3blob

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/themetrader/internal/domain"
)

type memBlobs struct {
	objects map[string][]byte
	types   map[string]string
	putErr  error
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memBlobs) Put(_ context.Context, p string, data io.Reader, contentType string) error {
	if m.putErr != nil {
		return m.putErr
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.objects[p] = b
	m.types[p] = contentType
	return nil
}

func (m *memBlobs) Get(_ context.Context, p string) (io.ReadCloser, error) {
	b, ok := m.objects[p]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(strings.NewReader(string(b))), nil
}

func (m *memBlobs) List(_ context.Context, prefix string) ([]domain.BlobInfo, error) {
	out := []domain.BlobInfo{}
	for p, b := range m.objects {
		if strings.HasPrefix(p, prefix) {
			out = append(out, domain.BlobInfo{Path: p, Size: int64(len(b))})
		}
	}
	return out, nil
}

func TestArchiveReportLayout(t *testing.T) {
	blobs := newMemBlobs()
	a := NewReportArchiver(blobs, blobs, "/reports/")
	ctx := context.Background()

	started := time.Date(2024, 3, 5, 14, 30, 2, 0, time.UTC)
	report := domain.CycleReport{ID: "c1", StartedAt: started, FinishedAt: started.Add(time.Second)}

	p, err := a.ArchiveReport(ctx, report)
	require.NoError(t, err)
	assert.Equal(t, "reports/2024/03/05/143002_c1.json", p)
	assert.Equal(t, "application/json", blobs.types[p])

	var decoded domain.CycleReport
	require.NoError(t, json.Unmarshal(blobs.objects[p], &decoded))
	assert.Equal(t, "c1", decoded.ID)

	_, err = a.ArchiveReport(ctx, domain.CycleReport{ID: "c2", StartedAt: started.AddDate(0, 0, 1)})
	require.NoError(t, err)

	infos, err := a.ListReports(ctx, started)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, p, infos[0].Path)
}

func TestArchiveReportPutFailure(t *testing.T) {
	blobs := newMemBlobs()
	blobs.putErr = errors.New("bucket gone")
	a := NewReportArchiver(blobs, blobs, "reports")

	_, err := a.ArchiveReport(context.Background(), domain.CycleReport{ID: "c1", StartedAt: time.Now()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket gone")
}

func TestEndpointURL(t *testing.T) {
	assert.Equal(t, "https://minio:9000", endpointURL("minio:9000", true))
	assert.Equal(t, "http://minio:9000", endpointURL("minio:9000", false))
	assert.Equal(t, "http://localhost:9000", endpointURL("http://localhost:9000", true))
}
