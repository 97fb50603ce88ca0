package domain

import "testing"

func testResource(name, version, license string) DataPackageResource {
	return DataPackageResource{
		Name:        name,
		Version:     version,
		Path:        []string{"https://data.example.com/" + name},
		Description: "test resource",
		Format:      "GeoTIFF",
		SizeBytes:   1024,
		Hashes:      []string{"sha256:deadbeef"},
		Sources:     []DataPackageSource{{Title: "Source", Path: "https://source.example.com"}},
		License: DataPackageLicense{
			Name:  license,
			Path:  "https://opendefinition.org/licenses/" + license,
			Title: license,
		},
	}
}

func TestAddResourceToDatapackage(t *testing.T) {
	pkg := map[string]any{}

	pkg = AddResourceToDatapackage(testResource("elevation", "version_1", "ODbL-1.0"), pkg)

	resources, ok := pkg["resources"].([]any)
	if !ok || len(resources) != 1 {
		t.Fatalf("resources = %v, want 1 entry", pkg["resources"])
	}

	licenses, ok := pkg["licenses"].([]any)
	if !ok || len(licenses) != 1 {
		t.Fatalf("licenses = %v, want 1 entry", pkg["licenses"])
	}
}

func TestAddResourceDedupesByNameAndVersion(t *testing.T) {
	pkg := map[string]any{}

	pkg = AddResourceToDatapackage(testResource("elevation", "version_1", "ODbL-1.0"), pkg)
	pkg = AddResourceToDatapackage(testResource("elevation", "version_1", "ODbL-1.0"), pkg)

	resources := pkg["resources"].([]any)
	if len(resources) != 1 {
		t.Errorf("duplicate (name, version) added: %d resources", len(resources))
	}

	// Другая версия того же датасета — отдельный ресурс
	pkg = AddResourceToDatapackage(testResource("elevation", "version_2", "ODbL-1.0"), pkg)

	resources = pkg["resources"].([]any)
	if len(resources) != 2 {
		t.Errorf("new version not added: %d resources", len(resources))
	}
}

func TestAddLicenseDedupesByName(t *testing.T) {
	pkg := map[string]any{}

	pkg = AddResourceToDatapackage(testResource("elevation", "version_1", "ODbL-1.0"), pkg)
	pkg = AddResourceToDatapackage(testResource("landcover", "version_1", "ODbL-1.0"), pkg)
	pkg = AddResourceToDatapackage(testResource("population", "version_1", "CC-BY-4.0"), pkg)

	licenses := pkg["licenses"].([]any)
	if len(licenses) != 2 {
		t.Errorf("licenses = %d, want 2 (deduped by name)", len(licenses))
	}
}

func TestResourceAsMapKeys(t *testing.T) {
	m := testResource("elevation", "version_1", "ODbL-1.0").AsMap()

	// Ключи фиксированы форматом datapackage.json
	if _, ok := m["bytes"]; !ok {
		t.Error("resource map missing \"bytes\" key")
	}
	if _, ok := m["license"]; !ok {
		t.Error("resource map missing \"license\" key")
	}
	if _, ok := m["licenses"]; ok {
		t.Error("resource map must use singular \"license\", not \"licenses\"")
	}
}
