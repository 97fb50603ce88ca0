package core

import (
	"context"
	"errors"

	"github.com/shaiso/autopkg/internal/domain"
	"github.com/shaiso/autopkg/internal/processors"
	"github.com/shaiso/autopkg/internal/storage"
)

// testFailProcessorMeta — процессор-фикстура, который всегда падает.
// Нужен для проверки изоляции ошибок: его провал не должен ронять
// соседей по группе и финализацию.
var testFailProcessorMeta = processors.Metadata{
	Dataset:     "test_fail_processor",
	Version:     "version_1",
	Description: "Fixture processor that always fails",
	DataFormats: []string{},
	Author:      "autopkg developers",
	OriginURL:   "https://github.com/shaiso/autopkg",
	License: domain.DataPackageLicense{
		Name:  "ODbL-1.0",
		Path:  "https://opendatacommons.org/licenses/odbl/1-0/",
		Title: "Open Data Commons Open Database License 1.0",
	},
}

// ErrDeliberateFailure — ошибка, которую всегда возвращает
// test_fail_processor.
var ErrDeliberateFailure = errors.New("deliberate failure for testing")

type testFailProcessor struct {
	reporter processors.ProgressReporter
}

func newTestFailProcessor(_ *domain.Boundary, _ storage.Backend, reporter processors.ProgressReporter, _ string) processors.Processor {
	return &testFailProcessor{reporter: reporter}
}

func (p *testFailProcessor) Exists(_ context.Context) (bool, error) {
	return false, nil
}

// OutputFilenames пуст: до выхода процессор никогда не доходит.
func (p *testFailProcessor) OutputFilenames() []string {
	return nil
}

func (p *testFailProcessor) Generate(ctx context.Context) (any, error) {
	p.reporter.Report(ctx, 10, "about to fail")
	return nil, ErrDeliberateFailure
}
