package domain

// DataPackageLicense — лицензия ресурса datapackage.
// См. https://specs.frictionlessdata.io/data-package/#licenses
type DataPackageLicense struct {
	// Name — Open Definition license ID.
	Name string `json:"name"`

	// Path — полный HTTP адрес либо относительный POSIX путь.
	Path string `json:"path"`

	// Title — человекочитаемое название.
	Title string `json:"title"`
}

// AsMap возвращает лицензию в виде map для слияния в datapackage.json.
func (l DataPackageLicense) AsMap() map[string]any {
	return map[string]any{
		"name":  l.Name,
		"path":  l.Path,
		"title": l.Title,
	}
}

// DataPackageSource — источник данных ресурса.
type DataPackageSource struct {
	Title string `json:"title"`
	Path  string `json:"path"`
}

// DataPackageResource — запись ресурса в datapackage: соответствие
// один-к-одному между ресурсом и (dataset, version).
//
// Ресурс уникально идентифицируется парой (Name, Version): добавление
// уже существующей пары — no-op.
type DataPackageResource struct {
	Name        string              `json:"name"`
	Version     string              `json:"version"`
	Path        []string            `json:"path"`
	Description string              `json:"description"`
	Format      string              `json:"format"`
	SizeBytes   int64               `json:"bytes"`
	Hashes      []string            `json:"hashes"`
	Sources     []DataPackageSource `json:"sources"`
	License     DataPackageLicense  `json:"license"`
}

// AsMap возвращает ресурс в виде map для слияния в datapackage.json.
func (r DataPackageResource) AsMap() map[string]any {
	sources := make([]any, 0, len(r.Sources))
	for _, s := range r.Sources {
		sources = append(sources, map[string]any{"title": s.Title, "path": s.Path})
	}
	paths := make([]any, 0, len(r.Path))
	for _, p := range r.Path {
		paths = append(paths, p)
	}
	hashes := make([]any, 0, len(r.Hashes))
	for _, h := range r.Hashes {
		hashes = append(hashes, h)
	}
	return map[string]any{
		"name":        r.Name,
		"version":     r.Version,
		"path":        paths,
		"description": r.Description,
		"format":      r.Format,
		"bytes":       r.SizeBytes,
		"hashes":      hashes,
		"sources":     sources,
		"license":     r.License.AsMap(),
	}
}

// AddLicenseToDatapackage добавляет лицензию в массив licenses,
// если лицензии с таким name там ещё нет.
func AddLicenseToDatapackage(license DataPackageLicense, datapackage map[string]any) map[string]any {
	existing, ok := datapackage["licenses"].([]any)
	if !ok {
		datapackage["licenses"] = []any{license.AsMap()}
		return datapackage
	}

	for _, item := range existing {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if entry["name"] == license.Name {
			return datapackage
		}
	}

	datapackage["licenses"] = append(existing, license.AsMap())
	return datapackage
}

// AddResourceToDatapackage добавляет ресурс в массив resources,
// если ресурса с той же парой (name, version) там ещё нет,
// и затем сливает его лицензию.
func AddResourceToDatapackage(resource DataPackageResource, datapackage map[string]any) map[string]any {
	existing, ok := datapackage["resources"].([]any)
	if !ok {
		datapackage["resources"] = []any{resource.AsMap()}
		return AddLicenseToDatapackage(resource.License, datapackage)
	}

	for _, item := range existing {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if entry["name"] == resource.Name && entry["version"] == resource.Version {
			return AddLicenseToDatapackage(resource.License, datapackage)
		}
	}

	datapackage["resources"] = append(existing, resource.AsMap())
	return AddLicenseToDatapackage(resource.License, datapackage)
}
