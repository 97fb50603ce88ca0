package awss3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/shaiso/autopkg/internal/domain"
	"github.com/shaiso/autopkg/internal/storage"
)

// fakeClient — S3 в памяти: достаточно семантики prefix/delimiter
// листинга, чтобы протестировать backend без сети.
type fakeClient struct {
	objects map[string][]byte
}

func newFakeClient() *fakeClient {
	return &fakeClient{objects: map[string][]byte{}}
}

func (f *fakeClient) ListObjectsV2(_ context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	prefix := aws.ToString(params.Prefix)
	delimiter := aws.ToString(params.Delimiter)

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	seen := map[string]bool{}
	keys := make([]string, 0, len(f.objects))
	for key := range f.objects {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rest := strings.TrimPrefix(key, prefix)
		if delimiter != "" {
			if idx := strings.Index(rest, delimiter); idx >= 0 {
				common := prefix + rest[:idx+1]
				if !seen[common] {
					seen[common] = true
					out.CommonPrefixes = append(out.CommonPrefixes, types.CommonPrefix{Prefix: aws.String(common)})
				}
				continue
			}
		}
		out.Contents = append(out.Contents, types.Object{Key: aws.String(key)})
	}
	return out, nil
}

func (f *fakeClient) HeadObject(_ context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if _, ok := f.objects[aws.ToString(params.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeClient) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	raw, ok := f.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(raw))}, nil
}

func (f *fakeClient) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	raw, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(params.Key)] = raw
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeClient) DeleteObject(_ context.Context, params *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(params.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func newTestBackend() (*Backend, *fakeClient) {
	client := newFakeClient()
	return New(client, "autopkg-packages", "https://data.example.com"), client
}

func writeSourceFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write source file: %v", err)
	}
	return p
}

func TestCreateBoundaryFolder(t *testing.T) {
	b, _ := newTestBackend()
	ctx := context.Background()

	exists, err := b.BoundaryFolderExists(ctx, "nepal")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exists {
		t.Error("boundary folder should not exist before creation")
	}

	if err := b.CreateBoundaryFolder(ctx, "nepal"); err != nil {
		t.Fatalf("create boundary folder: %v", err)
	}
	if err := b.CreateBoundaryDataFolder(ctx, "nepal"); err != nil {
		t.Fatalf("create boundary data folder: %v", err)
	}

	exists, err = b.BoundaryDataFolderExists(ctx, "nepal")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !exists {
		t.Error("boundary data folder should exist after creation")
	}
}

func TestPutProcessorData(t *testing.T) {
	b, client := newTestBackend()
	ctx := context.Background()
	src := writeSourceFile(t, "elevation.tif", "tif-bytes")

	uri, err := b.PutProcessorData(ctx, src, "nepal", "elevation", "version_1", false)
	if err != nil {
		t.Fatalf("put processor data: %v", err)
	}
	want := "https://data.example.com/nepal/datasets/elevation/version_1/data/elevation.tif"
	if uri != want {
		t.Errorf("expected uri %s, got %s", want, uri)
	}

	if _, ok := client.objects["nepal/datasets/elevation/version_1/data/elevation.tif"]; !ok {
		t.Error("object should exist after put")
	}

	exists, err := b.ProcessorFileExists(ctx, "nepal", "elevation", "version_1", "elevation.tif")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !exists {
		t.Error("processor file should exist after put")
	}
}

func TestTree(t *testing.T) {
	b, _ := newTestBackend()
	ctx := context.Background()

	for _, put := range []struct {
		file, boundary, dataset, version string
	}{
		{"a.tif", "nepal", "elevation", "version_1"},
		{"b.tif", "nepal", "elevation", "version_2"},
		{"c.tif", "nepal", "rivers", "version_1"},
		{"d.tif", "bhutan", "elevation", "version_1"},
	} {
		src := writeSourceFile(t, put.file, "x")
		if _, err := b.PutProcessorData(ctx, src, put.boundary, put.dataset, put.version, false); err != nil {
			t.Fatalf("put %s: %v", put.file, err)
		}
	}

	tree, err := b.Tree(ctx, false)
	if err != nil {
		t.Fatalf("tree: %v", err)
	}
	if len(tree) != 2 {
		t.Fatalf("expected 2 packages, got %d", len(tree))
	}
	if len(tree["nepal"]["elevation"]) != 2 {
		t.Errorf("expected 2 versions for nepal/elevation, got %v", tree["nepal"]["elevation"])
	}
	if len(tree["bhutan"]) != 1 {
		t.Errorf("expected 1 dataset for bhutan, got %d", len(tree["bhutan"]))
	}
}

func TestPackageDatasets_NotFound(t *testing.T) {
	b, _ := newTestBackend()

	_, err := b.PackageDatasets(context.Background(), "atlantis")
	if !errors.Is(err, storage.ErrPackageNotFound) {
		t.Errorf("expected ErrPackageNotFound, got %v", err)
	}
}

func TestDatasetVersions_NotFound(t *testing.T) {
	b, _ := newTestBackend()
	ctx := context.Background()
	src := writeSourceFile(t, "a.tif", "x")
	if _, err := b.PutProcessorData(ctx, src, "nepal", "elevation", "version_1", false); err != nil {
		t.Fatalf("put: %v", err)
	}

	_, err := b.DatasetVersions(ctx, "nepal", "missing")
	if !errors.Is(err, storage.ErrDatasetNotFound) {
		t.Errorf("expected ErrDatasetNotFound, got %v", err)
	}
}

func TestCountAndRemoveDataFiles(t *testing.T) {
	b, _ := newTestBackend()
	ctx := context.Background()

	for _, name := range []string{"a.tif", "b.tif", "meta.json"} {
		src := writeSourceFile(t, name, "x")
		if _, err := b.PutProcessorData(ctx, src, "nepal", "elevation", "version_1", false); err != nil {
			t.Fatalf("put %s: %v", name, err)
		}
	}

	count, err := b.CountDataFiles(ctx, "nepal", "elevation", "version_1", ".tif")
	if err != nil {
		t.Fatalf("count data files: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 tif objects, got %d", count)
	}

	_, err = b.CountDataFiles(ctx, "nepal", "elevation", "version_9", ".tif")
	if !errors.Is(err, storage.ErrFolderNotFound) {
		t.Errorf("expected ErrFolderNotFound, got %v", err)
	}

	if err := b.RemoveDataFiles(ctx, "nepal", "elevation", "version_1"); err != nil {
		t.Fatalf("remove data files: %v", err)
	}
	keys, err := b.listKeys(ctx, "nepal/datasets/elevation/version_1/data/")
	if err != nil {
		t.Fatalf("list after remove: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("expected no objects after remove, got %v", keys)
	}
}

func TestAddProvenance_Accumulates(t *testing.T) {
	b, client := newTestBackend()
	ctx := context.Background()

	first := []domain.ProvenanceEntry{{"boundary_processor": map[string]any{"boundary": "created"}}}
	if err := b.AddProvenance(ctx, "nepal", first, storage.ProvenanceFilename); err != nil {
		t.Fatalf("add provenance: %v", err)
	}
	second := []domain.ProvenanceEntry{{"elevation.version_1": "uri"}}
	if err := b.AddProvenance(ctx, "nepal", second, storage.ProvenanceFilename); err != nil {
		t.Fatalf("add provenance second: %v", err)
	}

	history := map[string][]domain.ProvenanceEntry{}
	if err := json.Unmarshal(client.objects["nepal/provenance.json"], &history); err != nil {
		t.Fatalf("decode provenance: %v", err)
	}
	if len(history) != 2 {
		t.Errorf("expected 2 provenance runs, got %d", len(history))
	}
}

func TestUpdateDatapackage(t *testing.T) {
	b, _ := newTestBackend()
	ctx := context.Background()

	err := b.UpdateDatapackage(ctx, "nepal", domain.DataPackageResource{Name: "elevation", Version: "version_1"})
	if !errors.Is(err, storage.ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}

	src := writeSourceFile(t, "datapackage.json", `{"name":"nepal","resources":[],"licenses":[]}`)
	if _, err := b.PutBoundaryData(ctx, src, "nepal"); err != nil {
		t.Fatalf("put datapackage template: %v", err)
	}

	resource := domain.DataPackageResource{
		Name:    "elevation",
		Version: "version_1",
		License: domain.DataPackageLicense{Name: "ODbL-1.0"},
	}
	if err := b.UpdateDatapackage(ctx, "nepal", resource); err != nil {
		t.Fatalf("update datapackage: %v", err)
	}
	if err := b.UpdateDatapackage(ctx, "nepal", resource); err != nil {
		t.Fatalf("update datapackage again: %v", err)
	}

	datapackage, err := b.LoadDatapackage(ctx, "nepal")
	if err != nil {
		t.Fatalf("load datapackage: %v", err)
	}
	resources, ok := datapackage["resources"].([]any)
	if !ok || len(resources) != 1 {
		t.Fatalf("expected 1 resource, got %v", datapackage["resources"])
	}
}
