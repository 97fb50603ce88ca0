// Package awss3 реализует storage.Backend поверх S3-совместимого
// объектного хранилища.
//
// Каталогов в S3 нет: "папки" моделируются общими префиксами ключей
// плюс пустым объектом-маркером "{prefix}/", чтобы созданный, но ещё
// пустой пакет был наблюдаем через listing.
package awss3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/shaiso/autopkg/internal/domain"
	"github.com/shaiso/autopkg/internal/storage"
)

// Client — используемое подмножество S3 API. Сужение до интерфейса
// позволяет тестировать backend без сети.
type Client interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Backend — объектное хранилище пакетов в одном bucket.
type Backend struct {
	client  Client
	bucket  string
	hostURL string
}

// New создаёт Backend поверх готового клиента.
func New(client Client, bucket, hostURL string) *Backend {
	return &Backend{
		client:  client,
		bucket:  bucket,
		hostURL: strings.TrimSuffix(hostURL, "/"),
	}
}

// NewFromEnv создаёт Backend с клиентом из стандартной цепочки
// AWS-конфигурации (env, shared config, IAM role).
func NewFromEnv(ctx context.Context, bucket, hostURL string) (*Backend, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return New(s3.NewFromConfig(cfg), bucket, hostURL), nil
}

func (b *Backend) key(parts ...string) string {
	return path.Join(parts...)
}

func (b *Backend) uri(key string) string {
	return b.hostURL + "/" + key
}

// listDirectories возвращает имена "каталогов" первого уровня
// под префиксом (общие префиксы до следующего "/").
func (b *Backend) listDirectories(ctx context.Context, prefix string) ([]string, error) {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	var names []string
	var token *string
	for {
		out, err := b.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(b.bucket),
			Prefix:            aws.String(prefix),
			Delimiter:         aws.String("/"),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		for _, cp := range out.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), prefix), "/")
			if name != "" {
				names = append(names, name)
			}
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
	}
	sort.Strings(names)
	return names, nil
}

// listKeys возвращает все ключи под префиксом, кроме маркеров папок.
func (b *Backend) listKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	var token *string
	for {
		out, err := b.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(b.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasSuffix(key, "/") {
				keys = append(keys, key)
			}
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
	}
	return keys, nil
}

// prefixExists — есть ли под префиксом хоть один объект
// (включая маркер папки).
func (b *Backend) prefixExists(ctx context.Context, prefix string) (bool, error) {
	out, err := b.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(b.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, fmt.Errorf("list %s: %w", prefix, err)
	}
	return len(out.Contents) > 0, nil
}

func (b *Backend) objectExists(ctx context.Context, key string) (bool, error) {
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("head %s: %w", key, err)
	}
	return true, nil
}

// Tree строит дерево package → dataset → [versions] из листингов.
func (b *Backend) Tree(ctx context.Context, summaryOnly bool) (storage.Tree, error) {
	packages, err := b.listDirectories(ctx, "")
	if err != nil {
		return nil, err
	}

	tree := make(storage.Tree, len(packages))
	for _, pkg := range packages {
		tree[pkg] = map[string][]string{}
		if summaryOnly {
			continue
		}
		datasets, err := b.listDirectories(ctx, b.key(pkg, storage.DatasetsFolderName))
		if err != nil {
			return nil, err
		}
		for _, dataset := range datasets {
			versions, err := b.listDirectories(ctx, b.key(pkg, storage.DatasetsFolderName, dataset))
			if err != nil {
				return nil, err
			}
			tree[pkg][dataset] = versions
		}
	}
	return tree, nil
}

// Packages возвращает отсортированный список пакетов.
func (b *Backend) Packages(ctx context.Context) ([]string, error) {
	return b.listDirectories(ctx, "")
}

// PackageDatasets возвращает датасеты пакета.
func (b *Backend) PackageDatasets(ctx context.Context, packageName string) ([]string, error) {
	exists, err := b.prefixExists(ctx, packageName+"/")
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("package %s: %w", packageName, storage.ErrPackageNotFound)
	}
	return b.listDirectories(ctx, b.key(packageName, storage.DatasetsFolderName))
}

// DatasetVersions возвращает версии датасета.
func (b *Backend) DatasetVersions(ctx context.Context, packageName, dataset string) ([]string, error) {
	if _, err := b.PackageDatasets(ctx, packageName); err != nil {
		return nil, err
	}
	prefix := b.key(packageName, storage.DatasetsFolderName, dataset) + "/"
	exists, err := b.prefixExists(ctx, prefix)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("dataset %s/%s: %w", packageName, dataset, storage.ErrDatasetNotFound)
	}
	return b.listDirectories(ctx, prefix)
}

// BoundaryFolderExists — есть ли хоть один объект под префиксом границы.
func (b *Backend) BoundaryFolderExists(ctx context.Context, boundaryName string) (bool, error) {
	return b.prefixExists(ctx, boundaryName+"/")
}

// BoundaryDataFolderExists — есть ли префикс datasets границы.
func (b *Backend) BoundaryDataFolderExists(ctx context.Context, boundaryName string) (bool, error) {
	return b.prefixExists(ctx, b.key(boundaryName, storage.DatasetsFolderName)+"/")
}

// BoundaryFileExists — существует ли объект в корне пакета границы.
func (b *Backend) BoundaryFileExists(ctx context.Context, boundaryName, filename string) (bool, error) {
	return b.objectExists(ctx, b.key(boundaryName, filename))
}

// createMarker кладёт пустой объект-маркер папки и проверяет,
// что префикс стал наблюдаем.
func (b *Backend) createMarker(ctx context.Context, prefix string) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(prefix),
		Body:   bytes.NewReader(nil),
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %v", storage.ErrFolderCreation, prefix, err)
	}
	exists, err := b.prefixExists(ctx, prefix)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s not present after create", storage.ErrFolderCreation, prefix)
	}
	return nil
}

// CreateBoundaryFolder создаёт маркер корня пакета границы.
func (b *Backend) CreateBoundaryFolder(ctx context.Context, boundaryName string) error {
	return b.createMarker(ctx, boundaryName+"/")
}

// CreateBoundaryDataFolder создаёт маркер префикса datasets границы.
func (b *Backend) CreateBoundaryDataFolder(ctx context.Context, boundaryName string) error {
	return b.createMarker(ctx, b.key(boundaryName, storage.DatasetsFolderName)+"/")
}

// putFile загружает локальный файл и перепроверяет объект через
// HeadObject: листинги S3 могут отставать, HeadObject по точному
// ключу — нет.
func (b *Backend) putFile(ctx context.Context, localSourcePath, key string) (string, error) {
	src, err := os.Open(localSourcePath)
	if err != nil {
		return "", fmt.Errorf("open source %s: %w", localSourcePath, err)
	}
	defer src.Close()

	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   src,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", storage.ErrFileCreation, key, err)
	}

	exists, err := b.objectExists(ctx, key)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", fmt.Errorf("%w: %s not present after put", storage.ErrFileCreation, key)
	}
	return b.uri(key), nil
}

// PutBoundaryData кладёт вспомогательный файл в корень пакета границы.
func (b *Backend) PutBoundaryData(ctx context.Context, localSourcePath, boundaryName string) (string, error) {
	return b.putFile(ctx, localSourcePath, b.key(boundaryName, filepath.Base(localSourcePath)))
}

// PutProcessorData кладёт файл данных процессора под префикс data
// версии датасета.
func (b *Backend) PutProcessorData(ctx context.Context, localSourcePath, boundaryName, dataset, version string, removeSource bool) (string, error) {
	key := b.key(boundaryName, storage.DatasetsFolderName, dataset, version, storage.DataFolderName, filepath.Base(localSourcePath))
	uri, err := b.putFile(ctx, localSourcePath, key)
	if err != nil {
		return "", err
	}
	if removeSource {
		if err := os.Remove(localSourcePath); err != nil {
			return "", fmt.Errorf("remove source %s: %w", localSourcePath, err)
		}
	}
	return uri, nil
}

// PutProcessorMetadata кладёт файл метаданных процессора под префикс
// версии датасета.
func (b *Backend) PutProcessorMetadata(ctx context.Context, localSourcePath, boundaryName, dataset, version string) (string, error) {
	key := b.key(boundaryName, storage.DatasetsFolderName, dataset, version, filepath.Base(localSourcePath))
	return b.putFile(ctx, localSourcePath, key)
}

// ProcessorFileExists — существует ли файл данных процессора.
func (b *Backend) ProcessorFileExists(ctx context.Context, boundaryName, dataset, version, filename string) (bool, error) {
	return b.objectExists(ctx, b.key(boundaryName, storage.DatasetsFolderName, dataset, version, storage.DataFolderName, filename))
}

// ProcessorDatasetExists — существует ли префикс версии датасета.
func (b *Backend) ProcessorDatasetExists(ctx context.Context, boundaryName, dataset, version string) (bool, error) {
	return b.prefixExists(ctx, b.key(boundaryName, storage.DatasetsFolderName, dataset, version)+"/")
}

// CountDataFiles считает объекты данных с данным расширением.
func (b *Backend) CountDataFiles(ctx context.Context, boundaryName, dataset, version, ext string) (int, error) {
	prefix := b.key(boundaryName, storage.DatasetsFolderName, dataset, version, storage.DataFolderName) + "/"
	keys, err := b.listKeys(ctx, prefix)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		exists, err := b.prefixExists(ctx, prefix)
		if err != nil {
			return 0, err
		}
		if !exists {
			return 0, fmt.Errorf("%w: %s", storage.ErrFolderNotFound, prefix)
		}
	}

	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	count := 0
	for _, key := range keys {
		if path.Ext(key) == ext {
			count++
		}
	}
	return count, nil
}

// RemoveDataFiles удаляет все объекты данных версии датасета.
func (b *Backend) RemoveDataFiles(ctx context.Context, boundaryName, dataset, version string) error {
	prefix := b.key(boundaryName, storage.DatasetsFolderName, dataset, version, storage.DataFolderName) + "/"
	keys, err := b.listKeys(ctx, prefix)
	if err != nil {
		return err
	}
	for _, key := range keys {
		_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
	}
	return nil
}

// getJSON читает и декодирует JSON-объект. Отсутствующий ключ —
// storage.ErrFileNotFound.
func (b *Backend) getJSON(ctx context.Context, key string, dest any) error {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return fmt.Errorf("%w: %s", storage.ErrFileNotFound, key)
		}
		return fmt.Errorf("get %s: %w", key, err)
	}
	defer out.Body.Close()

	if err := json.NewDecoder(out.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (b *Backend) putJSON(ctx context.Context, key string, value any) error {
	raw, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(raw),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %v", storage.ErrFileCreation, key, err)
	}
	return nil
}

// AddProvenance дописывает журнал в накопительный JSON границы.
func (b *Backend) AddProvenance(ctx context.Context, boundaryName string, log []domain.ProvenanceEntry, filename string) error {
	key := b.key(boundaryName, filename)

	history := map[string][]domain.ProvenanceEntry{}
	if err := b.getJSON(ctx, key, &history); err != nil && !errors.Is(err, storage.ErrFileNotFound) {
		return err
	}

	history[storage.ProvenanceTimestamp(time.Now())] = log
	return b.putJSON(ctx, key, history)
}

// LoadDatapackage читает datapackage.json границы.
func (b *Backend) LoadDatapackage(ctx context.Context, boundaryName string) (map[string]any, error) {
	datapackage := map[string]any{}
	if err := b.getJSON(ctx, b.key(boundaryName, storage.DatapackageFilename), &datapackage); err != nil {
		return nil, err
	}
	return datapackage, nil
}

// UpdateDatapackage сливает ресурс в datapackage.json границы.
func (b *Backend) UpdateDatapackage(ctx context.Context, boundaryName string, resource domain.DataPackageResource) error {
	datapackage, err := b.LoadDatapackage(ctx, boundaryName)
	if err != nil {
		return err
	}
	datapackage = domain.AddResourceToDatapackage(resource, datapackage)
	return b.putJSON(ctx, b.key(boundaryName, storage.DatapackageFilename), datapackage)
}
